package classify

// regionKeywords must appear at least once for an article to be admitted.
var regionKeywords = []string{
	"florida", "floridian", "fla.", "tallahassee", "miami", "tampa", "orlando",
	"jacksonville", "st. petersburg", "st. pete", "fort lauderdale",
	"gainesville", "pensacola", "sarasota", "fort myers", "palm beach",
	"broward", "hillsborough", "pinellas", "key west", "desantis",
	"ofmmu", "fdacs",
}

// topicKeywords must also appear at least once. Operator names are included
// because plenty of industry coverage never says "marijuana".
var topicKeywords = []string{
	"marijuana", "cannabis", "hemp", "thc", "cbd", "delta-8", "dispensary",
	"dispensaries", "medical marijuana", "mmtc", "recreational use",
	"adult-use", "adult use", "smokable", "edibles",
	"trulieve", "curaleaf", "ayr wellness", "verano", "green thumb",
	"fluent cannabis", "muv", "surterra", "liberty health sciences",
	"planet 13", "jushi", "columbia care", "the cannabist",
}

// Category is a named keyword group. Order in categories matters: the first
// category with a match wins.
type Category struct {
	Name     string
	Keywords []string
}

// DefaultCategory is returned when no category matches.
const DefaultCategory = "general"

var categories = []Category{
	{
		Name: "legislation",
		Keywords: []string{
			"bill", "legislature", "legislative", "lawmakers", "senate",
			"house", "amendment", "ballot", "referendum", "governor",
			"veto", "statute", "rule", "rulemaking",
		},
	},
	{
		Name: "legal",
		Keywords: []string{
			"court", "judge", "lawsuit", "sued", "ruling", "arrest",
			"arrested", "sheriff", "police", "seized", "charged",
			"attorney general",
		},
	},
	{
		Name: "business",
		Keywords: []string{
			"trulieve", "curaleaf", "ayr wellness", "verano", "green thumb",
			"earnings", "revenue", "quarter", "stock", "shares", "acquisition",
			"merger", "license", "licenses", "dispensary", "dispensaries",
			"market", "sales", "investors",
		},
	},
	{
		Name: "medical",
		Keywords: []string{
			"patient", "patients", "medical", "doctor", "physician", "clinic",
			"health", "qualifying condition", "card", "ofmmu", "veterans",
		},
	},
	{
		Name: "hemp",
		Keywords: []string{
			"hemp", "delta-8", "cbd", "kratom", "fdacs",
		},
	},
}
