package tax

import "sort"

// Jurisdiction is a sub-national tax authority identified by the two-digit
// code that prefixes every tax identifier registered in it.
type Jurisdiction struct {
	Code string
	Name string
}

// jurisdictions is the fixed state/territory code table.
var jurisdictions = map[string]string{
	"01": "Jammu and Kashmir",
	"02": "Himachal Pradesh",
	"03": "Punjab",
	"04": "Chandigarh",
	"05": "Uttarakhand",
	"06": "Haryana",
	"07": "Delhi",
	"08": "Rajasthan",
	"09": "Uttar Pradesh",
	"10": "Bihar",
	"11": "Sikkim",
	"12": "Arunachal Pradesh",
	"13": "Nagaland",
	"14": "Manipur",
	"15": "Mizoram",
	"16": "Tripura",
	"17": "Meghalaya",
	"18": "Assam",
	"19": "West Bengal",
	"20": "Jharkhand",
	"21": "Odisha",
	"22": "Chhattisgarh",
	"23": "Madhya Pradesh",
	"24": "Gujarat",
	"26": "Dadra and Nagar Haveli and Daman and Diu",
	"27": "Maharashtra",
	"29": "Karnataka",
	"30": "Goa",
	"31": "Lakshadweep",
	"32": "Kerala",
	"33": "Tamil Nadu",
	"34": "Puducherry",
	"35": "Andaman and Nicobar Islands",
	"36": "Telangana",
	"37": "Andhra Pradesh",
	"38": "Ladakh",
	"97": "Other Territory",
}

// ResolveJurisdiction maps a jurisdiction code to its canonical region.
func ResolveJurisdiction(code string) (Jurisdiction, bool) {
	name, ok := jurisdictions[code]
	if !ok {
		return Jurisdiction{}, false
	}
	return Jurisdiction{Code: code, Name: name}, true
}

// Jurisdictions returns the full lookup table ordered by code.
func Jurisdictions() []Jurisdiction {
	result := make([]Jurisdiction, 0, len(jurisdictions))
	for code, name := range jurisdictions {
		result = append(result, Jurisdiction{Code: code, Name: name})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})
	return result
}
