package patch

// NoLogo flips the conditional jump guarding the splash screens (je -> jne).
var NoLogo = Site{
	Name:        "no_logo",
	Expected:    []byte{0x74, 0x30},
	Replacement: []byte{0x75, 0x30},
}

// FontPatch makes the function 0x24 bytes before the font_patch offset
// return immediately, which avoids the font loading crash.
var FontPatch = Site{
	Name:        "font_patch",
	Adjust:      -0x24,
	Expected:    []byte{0x48},
	Replacement: []byte{0xC3},
}

// Sites lists every site in application order.
func Sites() []Site {
	return []Site{NoLogo, FontPatch}
}
