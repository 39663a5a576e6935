package adapter

import "strings"

// Preferred-stock classes trade venue-native as "CIM-B" and display as
// "CIM PRB". The translation is pure and reversible in both directions.
// Symbols on the pass-through list carry a dash that marks a common-stock
// share class, not a preferred series, and are never rewritten.
var symbolPassThrough = map[string]struct{}{
	"BRK-A": {},
	"BRK-B": {},
	"BF-A":  {},
	"BF-B":  {},
	"HEI-A": {},
	"LEN-B": {},
	"MOG-A": {},
	"MOG-B": {},
}

const preferredMark = " PR"

// ToDisplaySymbol converts a venue-native symbol to display form.
// "CIM-B" becomes "CIM PRB"; pass-through and dashless symbols are returned
// unchanged.
func ToDisplaySymbol(venueSym string) string {
	if _, ok := symbolPassThrough[venueSym]; ok {
		return venueSym
	}
	i := strings.LastIndexByte(venueSym, '-')
	if i <= 0 || i != len(venueSym)-2 {
		return venueSym
	}
	return venueSym[:i] + preferredMark + venueSym[i+1:]
}

// ToVenueSymbol converts a display symbol to venue-native form.
// "CIM PRB" becomes "CIM-B"; everything else is returned unchanged.
func ToVenueSymbol(displaySym string) string {
	if _, ok := symbolPassThrough[displaySym]; ok {
		return displaySym
	}
	i := strings.LastIndex(displaySym, preferredMark)
	if i <= 0 || i+len(preferredMark)+1 != len(displaySym) {
		return displaySym
	}
	return displaySym[:i] + "-" + displaySym[i+len(preferredMark):]
}
