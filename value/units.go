package value

import "math"

// Unit tags a numeric value with a physical unit. The numbering is part of
// the compiled asset format.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitVolt
	UnitMilliVolt
	UnitMicroVolt
	UnitAmpere
	UnitMilliAmpere
	UnitMicroAmpere
	UnitWatt
	UnitMilliWatt
	UnitSecond
	UnitMilliSecond
	UnitMicroSecond
	UnitHertz
	UnitKiloHertz
	UnitMegaHertz
	UnitOhm
	UnitKiloOhm
	UnitMegaOhm
	UnitFarad
	UnitMilliFarad
	UnitMicroFarad
	UnitNanoFarad
	UnitPicoFarad
	UnitPercent
	UnitDegree
	UnitCelsius
	UnitDecibel

	unitCount
)

type unitInfo struct {
	symbol string
	base   Unit
	factor float64 // value in base units of one of this unit
}

var units = [unitCount]unitInfo{
	UnitNone:        {"", UnitNone, 1},
	UnitVolt:        {"V", UnitVolt, 1},
	UnitMilliVolt:   {"mV", UnitVolt, 1e-3},
	UnitMicroVolt:   {"uV", UnitVolt, 1e-6},
	UnitAmpere:      {"A", UnitAmpere, 1},
	UnitMilliAmpere: {"mA", UnitAmpere, 1e-3},
	UnitMicroAmpere: {"uA", UnitAmpere, 1e-6},
	UnitWatt:        {"W", UnitWatt, 1},
	UnitMilliWatt:   {"mW", UnitWatt, 1e-3},
	UnitSecond:      {"s", UnitSecond, 1},
	UnitMilliSecond: {"ms", UnitSecond, 1e-3},
	UnitMicroSecond: {"us", UnitSecond, 1e-6},
	UnitHertz:       {"Hz", UnitHertz, 1},
	UnitKiloHertz:   {"kHz", UnitHertz, 1e3},
	UnitMegaHertz:   {"MHz", UnitHertz, 1e6},
	UnitOhm:         {"ohm", UnitOhm, 1},
	UnitKiloOhm:     {"kohm", UnitOhm, 1e3},
	UnitMegaOhm:     {"Mohm", UnitOhm, 1e6},
	UnitFarad:       {"F", UnitFarad, 1},
	UnitMilliFarad:  {"mF", UnitFarad, 1e-3},
	UnitMicroFarad:  {"uF", UnitFarad, 1e-6},
	UnitNanoFarad:   {"nF", UnitFarad, 1e-9},
	UnitPicoFarad:   {"pF", UnitFarad, 1e-12},
	UnitPercent:     {"%", UnitPercent, 1},
	UnitDegree:      {"deg", UnitDegree, 1},
	UnitCelsius:     {"oC", UnitCelsius, 1},
	UnitDecibel:     {"dB", UnitDecibel, 1},
}

// families lists the derived units of each base unit, largest first.
var families = map[Unit][]Unit{
	UnitVolt:   {UnitVolt, UnitMilliVolt, UnitMicroVolt},
	UnitAmpere: {UnitAmpere, UnitMilliAmpere, UnitMicroAmpere},
	UnitWatt:   {UnitWatt, UnitMilliWatt},
	UnitSecond: {UnitSecond, UnitMilliSecond, UnitMicroSecond},
	UnitHertz:  {UnitMegaHertz, UnitKiloHertz, UnitHertz},
	UnitOhm:    {UnitMegaOhm, UnitKiloOhm, UnitOhm},
	UnitFarad:  {UnitFarad, UnitMilliFarad, UnitMicroFarad, UnitNanoFarad, UnitPicoFarad},
}

// Symbol returns the printable unit symbol ("" for UnitNone).
func (u Unit) Symbol() string {
	if u < unitCount {
		return units[u].symbol
	}
	return ""
}

// Base returns the base unit of u's family.
func (u Unit) Base() Unit {
	if u < unitCount {
		return units[u].base
	}
	return UnitNone
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool { return u < unitCount }

// UnitFromSymbol looks a unit up by its symbol.
func UnitFromSymbol(s string) (Unit, bool) {
	for u := Unit(0); u < unitCount; u++ {
		if units[u].symbol == s {
			return u, true
		}
	}
	return UnitNone, false
}

// ScaleUnit picks the derived unit that shows f (expressed in unit u) with
// the smallest magnitude that is still at least one. Units without a family
// are returned unchanged.
func ScaleUnit(f float64, u Unit) (float64, Unit) {
	fam, ok := families[u.Base()]
	if !ok || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return f, u
	}
	base := f * units[u].factor
	abs := math.Abs(base)
	for _, cand := range fam {
		if abs >= units[cand].factor*(1-1e-12) {
			return base / units[cand].factor, cand
		}
	}
	last := fam[len(fam)-1]
	return base / units[last].factor, last
}
