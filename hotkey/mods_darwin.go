//go:build darwin

package hotkey

import "golang.design/x/hotkey"

func platformModifier(m Modifier) (hotkey.Modifier, bool) {
	switch m {
	case ModCtrl:
		return hotkey.ModCtrl, true
	case ModShift:
		return hotkey.ModShift, true
	case ModAlt:
		return hotkey.ModOption, true
	case ModSuper:
		return hotkey.ModCmd, true
	}
	return 0, false
}
