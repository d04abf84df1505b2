package keysym

import "strings"

// names lists the canonical symbolic name for each named keyval. Letters and
// digits resolve through their character and are not listed.
var names = []struct {
	name   string
	keyval Keyval
}{
	{"space", 0x0020},
	{"exclam", 0x0021},
	{"quotedbl", 0x0022},
	{"numbersign", 0x0023},
	{"dollar", 0x0024},
	{"percent", 0x0025},
	{"ampersand", 0x0026},
	{"apostrophe", 0x0027},
	{"parenleft", 0x0028},
	{"parenright", 0x0029},
	{"asterisk", 0x002a},
	{"plus", 0x002b},
	{"comma", 0x002c},
	{"minus", 0x002d},
	{"period", 0x002e},
	{"slash", 0x002f},
	{"colon", 0x003a},
	{"semicolon", 0x003b},
	{"less", 0x003c},
	{"equal", 0x003d},
	{"greater", 0x003e},
	{"question", 0x003f},
	{"at", 0x0040},
	{"bracketleft", 0x005b},
	{"backslash", 0x005c},
	{"bracketright", 0x005d},
	{"asciicircum", 0x005e},
	{"underscore", 0x005f},
	{"grave", 0x0060},
	{"braceleft", 0x007b},
	{"bar", 0x007c},
	{"braceright", 0x007d},
	{"asciitilde", 0x007e},
	{"BackSpace", 0xff08},
	{"Tab", 0xff09},
	{"Return", 0xff0d},
	{"Pause", 0xff13},
	{"Scroll_Lock", 0xff14},
	{"Escape", 0xff1b},
	{"Home", 0xff50},
	{"Left", 0xff51},
	{"Up", 0xff52},
	{"Right", 0xff53},
	{"Down", 0xff54},
	{"Page_Up", 0xff55},
	{"Page_Down", 0xff56},
	{"End", 0xff57},
	{"Print", 0xff61},
	{"Insert", 0xff63},
	{"Menu", 0xff67},
	{"Delete", 0xffff},
	{"KP_Enter", 0xff8d},
	{"KP_Multiply", 0xffaa},
	{"KP_Add", 0xffab},
	{"KP_Subtract", 0xffad},
	{"KP_Decimal", 0xffae},
	{"KP_Divide", 0xffaf},
	{"KP_0", 0xffb0},
	{"KP_1", 0xffb1},
	{"KP_2", 0xffb2},
	{"KP_3", 0xffb3},
	{"KP_4", 0xffb4},
	{"KP_5", 0xffb5},
	{"KP_6", 0xffb6},
	{"KP_7", 0xffb7},
	{"KP_8", 0xffb8},
	{"KP_9", 0xffb9},
	{"F1", 0xffbe},
	{"F2", 0xffbf},
	{"F3", 0xffc0},
	{"F4", 0xffc1},
	{"F5", 0xffc2},
	{"F6", 0xffc3},
	{"F7", 0xffc4},
	{"F8", 0xffc5},
	{"F9", 0xffc6},
	{"F10", 0xffc7},
	{"F11", 0xffc8},
	{"F12", 0xffc9},
	{"Shift_L", 0xffe1},
	{"Shift_R", 0xffe2},
	{"Control_L", 0xffe3},
	{"Control_R", 0xffe4},
	{"Caps_Lock", 0xffe5},
	{"Shift_Lock", 0xffe6},
	{"Meta_L", 0xffe7},
	{"Meta_R", 0xffe8},
	{"Alt_L", 0xffe9},
	{"Alt_R", 0xffea},
	{"Super_L", 0xffeb},
	{"Super_R", 0xffec},
	{"Hyper_L", 0xffed},
	{"Hyper_R", 0xffee},
	{"ISO_Level3_Shift", 0xfe03},
	{"Mode_switch", 0xff7e},
	{"Num_Lock", 0xff7f},
	{"Hangul", 0xff31},
	{"Hangul_Hanja", 0xff34},
	{"Henkan", 0xff23},
	{"Muhenkan", 0xff22},
	{"Zenkaku_Hankaku", 0xff2a},
	{"Eisu_toggle", 0xff30},
}

// aliases are accepted when parsing but never produced by Name.
var aliases = map[string]Keyval{
	"Enter":    0xff0d,
	"Esc":      0xff1b,
	"PageUp":   0xff55,
	"PageDown": 0xff56,
	"Prior":    0xff55,
	"Next":     0xff56,
	"Del":      0xffff,
}

var (
	nameByKeyval       = make(map[Keyval]string, len(names))
	keyvalByName       = make(map[string]Keyval, len(names)+len(aliases))
	keyvalByFoldedName = make(map[string]Keyval, len(names)+len(aliases))
)

func init() {
	for _, n := range names {
		nameByKeyval[n.keyval] = n.name
		keyvalByName[n.name] = n.keyval
	}
	for name, k := range aliases {
		keyvalByName[name] = k
	}
	// Single characters keep their case so that "a" and "A" stay distinct.
	for name, k := range keyvalByName {
		if len(name) > 1 {
			keyvalByFoldedName[strings.ToLower(name)] = k
		}
	}
}
