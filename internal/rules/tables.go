// Package rules implements the deterministic decision logic for TriageLine:
// local scope classification, the intent gate fallback, keyword-based
// symptom extraction, and the urgency/care-level rule engine.
//
// All pattern tables are immutable and compiled once at package load.
// They are kept as distinct named tables so the ordering rules between
// them stay auditable: out-of-scope patterns are always checked before
// medical patterns, and symptom signals before the word-count heuristic.
package rules

import (
	"regexp"
	"strings"
)

// compileKeyword compiles a keyword pattern case-insensitively, adding
// ASCII word boundaries only for pure-ASCII patterns. RE2 \b is an ASCII
// word boundary and breaks matching for Devanagari, Tamil, and Telugu.
func compileKeyword(pattern string) *regexp.Regexp {
	ascii := true
	for _, r := range pattern {
		if r > 127 {
			ascii = false
			break
		}
	}
	if ascii {
		pattern = `\b(?:` + pattern + `)\b`
	} else {
		pattern = `(?:` + pattern + `)`
	}
	return regexp.MustCompile(`(?i)` + pattern)
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, compileKeyword(p))
	}
	return out
}

func matchAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// outOfScopePatterns cover medicine/dose/diagnosis/prescription requests
// and clearly unrelated topics. Checked before medicalPatterns so that
// "which medicine for fever" stays out of scope even though it contains
// a medical keyword.
var outOfScopePatterns = compileAll([]string{
	`which medicine|what medicine|medicine for|tablet for|best medicine|suggest.{0,20}(medicine|tablet|drug)`,
	`dose|dosage|how (much|many).{0,20}(tablet|medicine|mg)`,
	`prescribe|prescription`,
	`antibiotic|paracetamol|ibuprofen|dolo|crocin`,
	`do i have (cancer|dengue|malaria|typhoid|covid|tb)`,
	`कौन सी दवा|दवा बता|कितनी गोली|गोली बता|कौनसी गोली`,
	`कोणते औषध|औषध सांगा|किती गोळ्या`,
	`என்ன மருந்து|மருந்து சொல்லு|எத்தனை மாத்திரை`,
	`ఏ మందు|మందు చెప్పండి|ఎన్ని మాత్రలు`,
	`cricket|football|movie|film|song|politics|election|stock market|share price|lottery`,
	`loan|bank account|recharge|train ticket|bus ticket|exam result`,
})

// medicalPatterns recognize symptom descriptions plus facility and
// booking requests across supported languages.
var medicalPatterns = compileAll([]string{
	`pain|ache|fever|cough|cold|vomit|loose motion|diarrh|dizzy|weak|rash|swelling|injur|bleed|breath|unconscious|faint|seizure|fits|burn`,
	`sick|unwell|not feeling well|ill`,
	`hospital|clinic|doctor|phc|chc|appointment|book.{0,15}(doctor|appointment)|health (centre|center)|ambulance`,
	`दर्द|बुखार|खांसी|जुकाम|उल्टी|दस्त|चक्कर|कमजोरी|बीमार|तबीयत|सांस|बेहोश|चोट|खून|अस्पताल|डॉक्टर|दवाखाना`,
	`दुखणे|ताप|खोकला|सर्दी|उलटी|जुलाब|अशक्त|आजारी|श्वास|जखम|रुग्णालय|डॉक्टर|दवाखाना`,
	`வலி|காய்ச்சல்|இருமல்|சளி|வாந்தி|மயக்கம்|சோர்வு|உடம்பு சரியில்லை|மூச்சு|காயம்|மருத்துவமனை|மருத்துவர்`,
	`నొప్పి|జ్వరం|దగ్గు|జలుబు|వాంతులు|కళ్లు తిరగడం|నీరసం|ఒంట్లో బాగోలేదు|ఊపిరి|గాయం|ఆసుపత్రి|వైద్యుడు`,
})

// greetingPattern matches greetings, acknowledgements, and farewells.
// Anchored so that a greeting embedded in a longer complaint does not
// swallow the complaint.
var greetingPattern = regexp.MustCompile(`(?i)^\s*(hi|hii+|hello|hey|namaste|namaskar|vanakkam|good\s*(morning|afternoon|evening|night)|thanks|thank\s*you|ok|okay|fine|bye|goodbye|नमस्ते|नमस्कार|धन्यवाद|ठीक है|अलविदा|नमस्कार|धन्यवाद|ठीक आहे|வணக்கம்|நன்றி|சரி|నమస్కారం|ధన్యవాదాలు|సరే)[\s!.।?]*$`)

// vagueHealthPatterns catch health complaints with no usable specifics.
var vagueHealthPatterns = compileAll([]string{
	`not feeling well|feeling (bad|sick|unwell|ill)|i am (sick|unwell|ill)|something is wrong|need help|help me`,
	`तबीयत (ठीक नहीं|खराब)|अच्छा नहीं लग रहा|बीमार हूँ|बीमार हूं|मदद (करो|कीजिए)`,
	`बरे वाटत नाही|तब्येत ठीक नाही|आजारी आहे|मदत करा`,
	`உடம்பு சரியில்லை|நலமில்லை|உதவி வேண்டும்`,
	`ఒంట్లో బాగోలేదు|ఆరోగ్యం బాగోలేదు|సహాయం కావాలి`,
})

// symptomKeywords maps symptom codes to their keyword patterns across
// all supported languages. Red-flag codes live in the same table; the
// redFlagSet below marks which codes force an emergency.
var symptomKeywords = func() map[string][]*regexp.Regexp {
	raw := map[string][]string{
		"fever":          {`fever|temperature|bukhar`, `बुखार|ताप आला|ताप आहे|ताप`, `காய்ச்சல்`, `జ్వరం`},
		"cough":          {`cough|khansi|khasi`, `खांसी|खोकला`, `இருமல்`, `దగ్గు`},
		"cold":           {`cold|runny nose|sneez|jukam|sardi`, `जुकाम|सर्दी|नाक बहना`, `சளி|தும்மல்`, `జలుబు|తుమ్ములు`},
		"headache":       {`headache|head ache|head pain|sir dard`, `सिरदर्द|सिर दर्द|डोकेदुखी|डोके दुखत`, `தலைவலி|தலை வலி`, `తలనొప్పి|తల నొప్పి`},
		"body_ache":      {`body ache|body pain|badan dard`, `बदन दर्द|शरीर दर्द|अंगदुखी|अंग दुखत`, `உடல் வலி`, `ఒళ్లు నొప్పులు|ఒంటి నొప్పి`},
		"stomach_pain":   {`stomach (pain|ache)|belly pain|pet dard`, `पेट दर्द|पेट में दर्द|पोटदुखी|पोट दुखत`, `வயிற்று வலி|வயிறு வலி`, `కడుపు నొప్పి`},
		"vomiting":       {`vomit|throwing up|ulti`, `उल्टी|उलटी|उलट्या`, `வாந்தி`, `వాంతులు|వాంతి`},
		"diarrhea":       {`diarrhea|diarrhoea|loose motion|loose stools|dast`, `दस्त|जुलाब`, `வயிற்றுப்போக்கு|வயிற்றுப் போக்கு`, `విరేచనాలు|నీళ్ల విరేచనాలు`},
		"chest_pain":     {`chest (pain|ache|tightness|pressure)|pain in( my| the)? chest|seene (mein|me) dard`, `सीने में दर्द|छाती में दर्द|छातीत दुखत|छातीत दुखणे`, `மார்பு வலி|நெஞ்சு வலி`, `ఛాతీ నొప్పి|గుండె నొప్పి`},
		"breathlessness": {`(difficulty|trouble|problem) breathing|breathless|short(ness)? of breath|cannot breathe|can'?t breathe|saans (nahi|lene)`, `सांस लेने में (तकलीफ|दिक्कत)|सांस नहीं|सांस फूल|श्वास घेण्यास त्रास|धाप लागत`, `மூச்சுத் திணறல்|மூச்சு விட (முடியவில்லை|சிரமம்)`, `ఊపిరి (ఆడటం లేదు|తీసుకోవడం కష్టం)|ఆయాసం`},
		"dizziness":      {`dizzy|dizziness|giddiness|chakkar`, `चक्कर|चक्कर येणे|चक्कर येतात`, `தலைச்சுற்றல்|தலை சுற்றுகிறது`, `కళ్లు తిరగడం|తల తిరగడం`},
		"weakness":       {`weak|weakness|tired|fatigue|kamzori`, `कमजोरी|थकान|अशक्तपणा|थकवा`, `சோர்வு|பலவீனம்`, `నీరసం|బలహీనత`},
		"rash":          {`rash|skin eruption|itching|khujli`, `चकत्ते|खुजली|पुरळ|खाज`, `தோல் தடிப்பு|அரிப்பு`, `దద్దుర్లు|దురద`},
		"sore_throat":   {`sore throat|throat pain|gala (kharab|dard)`, `गले में (खराश|दर्द)|घसा दुखत|घसादुखी`, `தொண்டை வலி`, `గొంతు నొప్పి`},
		"ear_pain":      {`ear (pain|ache)|kaan dard`, `कान दर्द|कान में दर्द|कान दुखत`, `காது வலி`, `చెవి నొప్పి`},
		"toothache":     {`tooth(ache)?|tooth pain|daant dard`, `दांत दर्द|दातदुखी|दात दुखत`, `பல் வலி`, `పంటి నొప్పి`},
		"injury":        {`injur|wound|cut|fracture|fell down|accident|chot`, `चोट|घाव|जखम|फ्रैक्चर`, `காயம்|விழுந்து`, `గాయం|దెబ్బ`},

		"unconscious":          {`unconscious|fainted|passed out|not (waking|responding)|behosh`, `बेहोश|होश नहीं|बेशुद्ध`, `மயக்கம்|மயங்கி விழுந்த`, `స్పృహ (లేదు|కోల్పోయా)|మూర్ఛపోయా`},
		"seizure":              {`seizure|convulsion|fits|jhatke`, `दौरा|दौरे|मिर्गी|झटके|झटका`, `வலிப்பு`, `మూర్ఛ|ఫిట్స్`},
		"severe_bleeding":      {`(heavy|severe|lot of|continuous) bleeding|bleeding (a lot|heavily|won'?t stop)`, `तेज खून|बहुत खून|खून (बह रहा|नहीं रुक)|खूप रक्तस्राव|रक्त थांबत नाही`, `அதிக இரத்தப்போக்கு|இரத்தம் நிற்கவில்லை`, `ఎక్కువ రక్తస్రావం|రక్తం ఆగడం లేదు`},
		"snake_bite":           {`snake ?bite|bitten by (a )?snake|saanp ne kata`, `सांप ने काटा|सांप का काटना|साप चावला`, `பாம்பு கடி(த்தது)?`, `పాము (కాటు|కరిచింది)`},
		"poisoning":            {`poison|swallowed.{0,20}(chemical|kerosene|pesticide)|zehar`, `जहर|विष प्यायल|विषबाधा`, `விஷம்|நச்சு`, `విషం (తాగా|మింగా)|విషప్రభావం`},
		"pregnancy_danger":     {`pregnan.{0,30}(bleeding|pain|danger)|labour pain|labor pain`, `गर्भवती.{0,20}(खून|दर्द)|गरोदर.{0,20}(रक्तस्राव|वेदना)`, `கர்ப்பிணி.{0,20}(இரத்தம்|வலி)`, `గర్భిణి.{0,20}(రక్తం|నొప్పి)`},
		"severe_abdominal_pain": {`severe (stomach|abdominal|belly) pain|unbearable stomach`, `पेट में (तेज|बहुत तेज|असहनीय) दर्द|पोटात तीव्र वेदना`, `கடுமையான வயிற்று வலி`, `తీవ్రమైన కడుపు నొప్పి|భరించలేని కడుపు నొప్పి`},
		"stroke_signs":          {`face droop|slurred speech|one side.{0,20}(weak|numb)|cannot move (arm|leg|one side)`, `चेहरा टेढ़ा|बोलने में लड़खड़ाहट|एक तरफ (कमजोरी|सुन्न)|अर्धांगवायू`, `முகம் கோணல்|பேச்சு குழறல்|ஒரு பக்கம் (பலவீனம்|மரத்து)`, `ముఖం వంకర|మాట తడబడటం|ఒక వైపు (బలహీనత|స్పర్శ లేదు)`},
		"stiff_neck":            {`stiff neck|neck stiffness|cannot bend neck`, `गर्दन में अकड़न|गर्दन अकड़|मान ताठ`, `கழுத்து விறைப்பு`, `మెడ బిగుసుకుపోవడం|మెడ పట్టేయడం`},
	}
	compiled := make(map[string][]*regexp.Regexp, len(raw))
	for code, patterns := range raw {
		compiled[code] = compileAll(patterns)
	}
	return compiled
}()

// redFlagSet marks symptom codes that force HIGH urgency and EMERGENCY
// care regardless of any other extracted field.
var redFlagSet = map[string]bool{
	"chest_pain":            true,
	"breathlessness":        true,
	"unconscious":           true,
	"seizure":               true,
	"severe_bleeding":       true,
	"snake_bite":            true,
	"poisoning":             true,
	"pregnancy_danger":      true,
	"severe_abdominal_pain": true,
	"stroke_signs":          true,
	"stiff_neck":            true,
}

// redFlagRuleCodes gives each red flag a stable reason code for audit.
var redFlagRuleCodes = map[string]string{
	"chest_pain":            "RF-001",
	"breathlessness":        "RF-002",
	"unconscious":           "RF-003",
	"seizure":               "RF-004",
	"severe_bleeding":       "RF-005",
	"snake_bite":            "RF-006",
	"poisoning":             "RF-007",
	"pregnancy_danger":      "RF-008",
	"severe_abdominal_pain": "RF-009",
	"stroke_signs":          "RF-010",
	"stiff_neck":            "RF-011",
}

// selfLimitingComplaints may resolve at home when mild and short-lived.
var selfLimitingComplaints = map[string]bool{
	"cough":     true,
	"cold":      true,
	"headache":  true,
	"body_ache": true,
}

// symptomOrder fixes the iteration order over symptomKeywords so that
// extraction is deterministic and the first detected symptom is stable.
var symptomOrder = []string{
	"chest_pain", "breathlessness", "unconscious", "seizure", "severe_bleeding",
	"snake_bite", "poisoning", "pregnancy_danger", "severe_abdominal_pain",
	"stroke_signs", "stiff_neck",
	"fever", "cough", "cold", "headache", "body_ache", "stomach_pain",
	"vomiting", "diarrhea", "dizziness", "weakness", "rash", "sore_throat",
	"ear_pain", "toothache", "injury",
}

// Duration patterns, normalized to days during extraction.
var (
	durationDaysPattern  = regexp.MustCompile(`(?i)(\d+)\s*(?:days?|din|dino|divas|दिन|दिनों|दिवस|நாள்|நாட்கள்|రోజు|రోజులు)`)
	durationWeeksPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:weeks?|hafte|hafta|सप्ताह|हफ्ते|आठवड[ाे]|வாரம்|வாரங்கள்|వారం|వారాలు)`)
	durationHoursPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|ghante|घंटे|घंटा|तास|மணி நேரம்|గంటలు|గంట)`)
	durationTodayPattern = regexp.MustCompile(`(?i)since (morning|today)|\btoday\b|subah se|आज से|आज|सकाळपासून|आज पासून|இன்று|காலையில் இருந்து|ఈరోజు|ఉదయం నుంచి`)
	durationYdayPattern  = regexp.MustCompile(`(?i)yesterday|last night|kal (raat|se)|कल से|कल रात|काल पासून|काल रात्री|நேற்று|நேற்றிரவு|నిన్న|రాత్రి నుంచి`)
)

// Severity keyword tables, checked severe then moderate then mild.
var (
	severeSeverityPatterns = compileAll([]string{
		`severe|unbearable|too much|very (bad|high|strong)|intense|worst`,
		`बहुत तेज|असहनीय|बहुत ज्यादा|तीव्र|खूप|असह्य`,
		`கடுமையான|தாங்க முடியவில்லை|மிக அதிகம்`,
		`చాలా ఎక్కువ|తీవ్రమైన|భరించలేని`,
	})
	moderateSeverityPatterns = compileAll([]string{
		`moderate|medium`, `मध्यम|ठीक-ठाक`, `மிதமான|நடுத்தர`, `మధ్యస్థ|ఓ మోస్తరు`,
	})
	mildSeverityPatterns = compileAll([]string{
		`mild|slight|little|light|minor`,
		`हल्का|हल्की|थोड़ा|थोड़ी|सौम्य|थोडा|थोडे|किंचित`,
		`லேசான|லேசா|கொஞ்சம்|சிறிது`,
		`కొద్దిగా|తేలికపాటి|కాస్త`,
	})
)

// Conversation-state trigger patterns used by the state machine.
var (
	locationRefinePattern = regexp.MustCompile(`(?i)too far|far away|\bfar\b|nearer|closer|near me|nearby|distance|\bkm\b|pincode|pin code|change location|दूर|पास में|नजदीक|जवळ|लांब|தூரம்|அருகில்|దూరం|దగ్గరలో`)
	facilityWordPattern   = regexp.MustCompile(`(?i)clinic|hospital|\bphc\b|\bchc\b|doctor|facility|centre|center|appointment|\bbook\b|booking|दवाखाना|अस्पताल|डॉक्टर|रुग्णालय|दवाखान्यात|மருத்துவமனை|மருத்துவர்|ఆసుపత్రి|వైద్యుడు`)
)

// IsLocationRefinement reports whether a message carries a location or
// distance signal, e.g. "too far" or a new pincode mention.
func IsLocationRefinement(text string) bool {
	return locationRefinePattern.MatchString(text)
}

// MentionsFacility reports whether a message asks for a facility,
// doctor, or booking.
func MentionsFacility(text string) bool {
	return facilityWordPattern.MatchString(text)
}

// wordCount counts whitespace-separated tokens.
func wordCount(text string) int {
	return len(strings.Fields(text))
}
