package validate

import "github.com/nanuguru/Med-Procedure/core"

// SettingRule flags facts that contradict a care setting.
type SettingRule struct {
	Setting core.Setting
	// Phrases are matched case-insensitively against fact text.
	Phrases []string
	Reason  string
}

// DefaultRules returns the built-in setting rules.
func DefaultRules() []SettingRule {
	return []SettingRule{
		{
			Setting: core.SettingHome,
			Phrases: []string{
				"support staff", "rapid response", "code team", "crash cart", "charge nurse",
				"nurse call", "hospital pharmacy", "operating room", "operating theatre", "ward round",
			},
			Reason: "relies on hospital staff or facilities that are not available at home",
		},
		{
			Setting: core.SettingHospital,
			Phrases: []string{"call 911", "call an ambulance", "drive to the emergency"},
			Reason:  "uses community escalation instead of the facility's own escalation pathway",
		},
	}
}

var considerations = map[core.Setting][]string{
	core.SettingHome: {
		"Ensure adequate lighting and a clean, uncluttered work surface.",
		"Maintain the patient's privacy and comfort in the home environment.",
		"Keep emergency contact numbers available before starting.",
		"Dispose of sharps and soiled materials in sealed containers.",
	},
	core.SettingHospital: {
		"Follow the facility's infection control protocol.",
		"Verify patient identity with two identifiers before starting.",
		"Coordinate timing with the healthcare team.",
	},
}

var documentationAdaptation = map[core.Setting]string{
	core.SettingHome:     "Record the procedure and the patient's response in the home care log.",
	core.SettingHospital: "Document the procedure and the patient's response in the medical record.",
}

var retryTerms = map[core.DeficiencyCategory]string{
	core.DeficiencySteps:     "step-by-step instructions",
	core.DeficiencyEquipment: "equipment and supplies list",
	core.DeficiencySafety:    "safety precautions contraindications",
}

var settingRetryTerms = map[core.Setting]string{
	core.SettingHome:     "home care caregiver without staff assistance",
	core.SettingHospital: "hospital ward nursing protocol",
}

const hygieneAdaptation = "Perform hand hygiene before and after the procedure."

const homeEquipmentAdaptation = "Prepare an equipment checklist before the visit; supplies at home are limited."

var (
	documentationWords = []string{"document", "record", "chart", "log "}
	hygieneWords       = []string{"hand hygiene", "wash hands", "wash your hands", "hand washing", "handwashing", "sanitiz", "sanitis"}
)
