package query

// Built-in term lists. Deployments normally ship a richer data file through
// internal/config; these defaults keep the pipeline useful out of the box and
// anchor the test suite.

func defaultGazetteer() map[EntityType][]string {
	return map[EntityType][]string{
		TypeEquipment: {
			"fuel filter", "oil filter", "air filter", "sea water pump",
			"fresh water pump", "bilge pump", "fuel pump", "impeller",
			"main engine", "generator", "gearbox", "bow thruster",
			"stern thruster", "stabilizer", "watermaker", "air handler",
			"heat exchanger", "turbocharger", "injector", "alternator",
			"starter motor", "exhaust elbow", "anode", "coupling",
			"hydraulic pump", "steering ram", "windlass", "davit crane",
			"fire damper", "chiller", "compressor",
		},
		TypeBrand: {
			"mtu", "caterpillar", "cummins", "volvo penta", "kohler",
			"northern lights", "onan", "yanmar", "man", "detroit diesel",
			"racor", "separ", "jabsco", "sea recovery", "naiad", "quantum",
			"dometic", "marine air", "headhunter", "maxwell",
		},
		TypeStockStatus: {
			"critically low inventory", "critically low", "out of stock",
			"low stock", "in stock", "on order", "back ordered",
			"below minimum",
		},
		TypeUrgency: {
			"critical", "urgent", "asap", "immediately", "overdue",
			"high priority",
		},
		TypeLocation: {
			"engine room", "lazarette", "bilge", "flybridge", "crew mess",
			"galley", "tender garage", "pump room", "forepeak",
			"steering compartment",
		},
	}
}

func defaultExpansions() map[string]string {
	return map[string]string{
		// Brand short-forms.
		"cat": "caterpillar",
		"dd":  "detroit diesel",
		"vp":  "volvo penta",
		"nl":  "northern lights",
		// Equipment shorthand.
		"gen":   "generator",
		"genny": "generator",
		"sw":    "sea water",
		"fw":    "fresh water",
		"wo":    "work order",
		"stbd":  "starboard",
		"hx":    "heat exchanger",
	}
}

func defaultStopwords() []string {
	return []string{
		"the", "a", "an", "of", "for", "to", "in", "on", "at", "and", "or",
		"is", "are", "was", "were", "be", "been", "with", "by", "from",
		"my", "our", "we", "i", "it", "its", "this", "that", "these",
		"do", "does", "did", "have", "has", "had", "need", "needs",
		"show", "me", "find", "get", "list", "all", "any", "some",
		"please", "where", "what", "which", "how", "when",
	}
}
