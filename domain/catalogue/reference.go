package catalogue

import "fmt"

var countryCodes = []string{"AT", "BE", "BG", "CY", "CZ", "DE", "DK", "EE", "EL", "ES", "FI", "FR", "HR",
	"HU", "IE", "IT", "LT", "LU", "LV", "NL", "PL", "PT", "RO", "SE", "SI", "SK"}

var countryCodesISO3 = []string{"AUT", "BEL", "BGR", "CYP", "CZE", "DEU", "DNK", "EST", "GRC", "ESP", "FIN", "FRA", "HRV",
	"HUN", "IRL", "ITA", "LTU", "LUX", "LVA", "NLD", "POL", "PRT", "ROU", "SWE", "SVN", "SVK"}

// NACE rev. 2 at 62 industries
var sectorsNace62 = []string{"A01", "A02", "A03", "B", "C10-C12", "C13-C15", "C16", "C17", "C18", "C19", "C20", "C21", "C22", "C23",
	"C24", "C25", "C26", "C27", "C28", "C29", "C30", "C31_C32", "C33", "D", "E36", "E37-E39", "F", "G45",
	"G46", "G47", "H49", "H50", "H51", "H52", "H53", "I", "J58", "J59_J60", "J61", "J62_J63", "K64", "K65",
	"K66", "L", "M69_M70", "M71", "M72", "M73", "M74_M75", "N77", "N78", "N79", "N80-N82", "O", "P",
	"Q86", "Q87_Q88", "R90-R92", "R93", "S94", "S95", "S96"}

// NACE rev. 2 sections
var sectorsNace1 = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M", "N", "O", "P", "Q", "R", "S"}

// DefaultTimeSteps and DefaultExperiments match the reference simulation runs
const (
	DefaultTimeSteps   = 13
	DefaultExperiments = 18
)

// Default returns the catalogue of the reference simulation runs: 26 EU
// countries, NACE-62 and NACE-1 sectors, 13 quarters and 18 experiments.
func Default() *Catalogue {
	c, err := New(Definition{
		Countries:     countryCodes,
		CountriesISO3: countryCodesISO3,
		SectorsFine:   sectorsNace62,
		SectorsCoarse: sectorsNace1,
		TimeSteps:     timeStepLabels(DefaultTimeSteps),
		Experiments:   experimentLabels(DefaultExperiments),
	})
	if err != nil {
		panic(fmt.Sprintf("catalogue: reference lists are invalid: %v", err))
	}
	return c
}

func timeStepLabels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Quarter %d", i)
	}
	return out
}

func experimentLabels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("E%d", i)
	}
	return out
}
