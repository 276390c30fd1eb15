package geo

import (
	"sort"
	"strings"
	"unicode"
)

// place is one gazetteer entry: a canonical key plus the spellings under which
// the place appears in article text. Keys double as geocoding cache keys.
type place struct {
	Key     string
	Aliases []string
}

// Gazetteer recognizes Bangladeshi place names, in Bengali and in the English
// transliterations the English-language outlets use.
type Gazetteer struct {
	places []place
	// alias (lowercased) to index into places
	byAlias map[string]int
}

// NewGazetteer builds the default gazetteer covering the 64 districts plus the
// Dhaka-area localities that dominate metro reporting.
func NewGazetteer() *Gazetteer {
	g := &Gazetteer{byAlias: map[string]int{}}
	for _, p := range defaultPlaces {
		idx := len(g.places)
		g.places = append(g.places, p)
		for _, alias := range p.Aliases {
			g.byAlias[strings.ToLower(alias)] = idx
		}
	}
	return g
}

// Match is one recognized place occurrence in a text.
type Match struct {
	Key      string
	Alias    string
	Position int
}

// Extract returns the distinct place keys mentioned in text, ordered by first
// occurrence. Overlapping aliases resolve to the longest one, so "dhaka city"
// reports one place, not two.
func (g *Gazetteer) Extract(text string) []string {
	if text == "" {
		return nil
	}
	matches := g.matchAll(text)

	seen := map[string]struct{}{}
	var keys []string
	for _, m := range matches {
		if _, dup := seen[m.Key]; dup {
			continue
		}
		seen[m.Key] = struct{}{}
		keys = append(keys, m.Key)
	}
	return keys
}

// matchAll finds every non-overlapping alias occurrence, preferring longer
// aliases when two overlap at the same region of text.
func (g *Gazetteer) matchAll(text string) []Match {
	lower := strings.ToLower(text)

	var raw []Match
	for alias, idx := range g.byAlias {
		for pos := 0; ; {
			rel := strings.Index(lower[pos:], alias)
			if rel < 0 {
				break
			}
			at := pos + rel
			if wordBounded(lower, at, len(alias)) {
				raw = append(raw, Match{Key: g.places[idx].Key, Alias: alias, Position: at})
			}
			pos = at + len(alias)
		}
	}

	// Longer aliases claim their span first; shorter overlapping ones drop out.
	sort.Slice(raw, func(i, j int) bool {
		if len(raw[i].Alias) != len(raw[j].Alias) {
			return len(raw[i].Alias) > len(raw[j].Alias)
		}
		if raw[i].Position != raw[j].Position {
			return raw[i].Position < raw[j].Position
		}
		return raw[i].Alias < raw[j].Alias
	})

	type span struct{ from, to int }
	var claimed []span
	var kept []Match
	for _, m := range raw {
		from, to := m.Position, m.Position+len(m.Alias)
		overlaps := false
		for _, s := range claimed {
			if from < s.to && s.from < to {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		claimed = append(claimed, span{from, to})
		kept = append(kept, m)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Position < kept[j].Position })
	return kept
}

// wordBounded reports whether text[at:at+length] is not embedded inside a
// longer word. Boundaries are checked on runes so Bengali text works the same
// as ASCII.
func wordBounded(text string, at, length int) bool {
	if at > 0 {
		r := previousRune(text, at)
		if isWordRune(r) {
			return false
		}
	}
	if at+length < len(text) {
		r := runeAt(text, at+length)
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func runeAt(s string, i int) rune {
	for _, r := range s[i:] {
		return r
	}
	return 0
}

func previousRune(s string, i int) rune {
	var last rune
	for _, r := range s[:i] {
		last = r
	}
	return last
}

// defaultPlaces lists the divisional cities and districts first, then the
// Dhaka metro localities. Alias casing is irrelevant; matching lowercases.
var defaultPlaces = []place{
	{Key: "dhaka", Aliases: []string{"ঢাকা", "dhaka", "dhaka city"}},
	{Key: "chattogram", Aliases: []string{"চট্টগ্রাম", "chittagong", "chattogram"}},
	{Key: "sylhet", Aliases: []string{"সিলেট", "sylhet"}},
	{Key: "rajshahi", Aliases: []string{"রাজশাহী", "rajshahi"}},
	{Key: "khulna", Aliases: []string{"খুলনা", "khulna"}},
	{Key: "barishal", Aliases: []string{"বরিশাল", "barisal", "barishal"}},
	{Key: "rangpur", Aliases: []string{"রংপুর", "rangpur"}},
	{Key: "mymensingh", Aliases: []string{"ময়মনসিংহ", "mymensingh"}},
	{Key: "cumilla", Aliases: []string{"কুমিল্লা", "comilla", "cumilla"}},
	{Key: "narayanganj", Aliases: []string{"নারায়ণগঞ্জ", "narayanganj"}},
	{Key: "gazipur", Aliases: []string{"গাজীপুর", "gazipur"}},
	{Key: "tangail", Aliases: []string{"টাঙ্গাইল", "tangail"}},
	{Key: "jamalpur", Aliases: []string{"জামালপুর", "jamalpur"}},
	{Key: "netrokona", Aliases: []string{"নেত্রকোনা", "netrokona"}},
	{Key: "sherpur", Aliases: []string{"শেরপুর", "sherpur"}},
	{Key: "kishoreganj", Aliases: []string{"কিশোরগঞ্জ", "kishoreganj"}},
	{Key: "manikganj", Aliases: []string{"মানিকগঞ্জ", "manikganj"}},
	{Key: "munshiganj", Aliases: []string{"মুন্শিগঞ্জ", "munshiganj"}},
	{Key: "narsingdi", Aliases: []string{"নরসিংদী", "narsingdi"}},
	{Key: "faridpur", Aliases: []string{"ফরিদপুর", "faridpur"}},
	{Key: "gopalganj", Aliases: []string{"গোপালগঞ্জ", "gopalganj"}},
	{Key: "madaripur", Aliases: []string{"মাদারীপুর", "madaripur"}},
	{Key: "rajbari", Aliases: []string{"রাজবাড়ী", "rajbari"}},
	{Key: "shariatpur", Aliases: []string{"শরীয়তপুর", "shariatpur"}},
	{Key: "noakhali", Aliases: []string{"নোয়াখালী", "noakhali"}},
	{Key: "feni", Aliases: []string{"ফেনী", "feni"}},
	{Key: "lakshmipur", Aliases: []string{"লক্ষ্মীপুর", "lakshmipur"}},
	{Key: "chandpur", Aliases: []string{"চাঁদপুর", "chandpur"}},
	{Key: "brahmanbaria", Aliases: []string{"ব্রাহ্মণবাড়িয়া", "brahmanbaria"}},
	{Key: "habiganj", Aliases: []string{"হবিগঞ্জ", "habiganj"}},
	{Key: "moulvibazar", Aliases: []string{"মৌলভীবাজার", "moulvibazar"}},
	{Key: "sunamganj", Aliases: []string{"সুনামগঞ্জ", "sunamganj"}},
	{Key: "natore", Aliases: []string{"নাটোর", "natore"}},
	{Key: "naogaon", Aliases: []string{"নওগাঁ", "naogaon"}},
	{Key: "chapainawabganj", Aliases: []string{"চাঁপাইনবাবগঞ্জ", "chapainawabganj"}},
	{Key: "pabna", Aliases: []string{"পাবনা", "pabna"}},
	{Key: "sirajganj", Aliases: []string{"সিরাজগঞ্জ", "sirajganj"}},
	{Key: "bogura", Aliases: []string{"বগুড়া", "bogura", "bogra"}},
	{Key: "joypurhat", Aliases: []string{"জয়পুরহাট", "joypurhat"}},
	{Key: "kushtia", Aliases: []string{"কুষ্টিয়া", "kushtia"}},
	{Key: "meherpur", Aliases: []string{"মেহেরপুর", "meherpur"}},
	{Key: "chuadanga", Aliases: []string{"চুয়াডাঙ্গা", "chuadanga"}},
	{Key: "jhenaidah", Aliases: []string{"ঝিনাইদহ", "jhenaidah"}},
	{Key: "magura", Aliases: []string{"মাগুরা", "magura"}},
	{Key: "narail", Aliases: []string{"নড়াইল", "narail"}},
	{Key: "satkhira", Aliases: []string{"সাতক্ষীরা", "satkhira"}},
	{Key: "bagerhat", Aliases: []string{"বাগেরহাট", "bagerhat"}},
	{Key: "jhalokati", Aliases: []string{"ঝালকাঠি", "jhalokati"}},
	{Key: "patuakhali", Aliases: []string{"পটুয়াখালী", "patuakhali"}},
	{Key: "pirojpur", Aliases: []string{"পিরোজপুর", "pirojpur"}},
	{Key: "bhola", Aliases: []string{"ভোলা", "bhola"}},
	{Key: "barguna", Aliases: []string{"বরগুনা", "barguna"}},
	{Key: "dinajpur", Aliases: []string{"দিনাজপুর", "dinajpur"}},
	{Key: "thakurgaon", Aliases: []string{"ঠাকুরগাঁও", "thakurgaon"}},
	{Key: "panchagarh", Aliases: []string{"পঞ্চগড়", "panchagarh"}},
	{Key: "nilphamari", Aliases: []string{"নীলফামারী", "nilphamari"}},
	{Key: "lalmonirhat", Aliases: []string{"লালমনিরহাট", "lalmonirhat"}},
	{Key: "kurigram", Aliases: []string{"কুড়িগ্রাম", "kurigram"}},
	{Key: "gaibandha", Aliases: []string{"গাইবান্ধা", "gaibandha"}},
	{Key: "coxs_bazar", Aliases: []string{"কক্সবাজার", "cox's bazar", "coxsbazar", "cox's bazaar"}},
	{Key: "rangamati", Aliases: []string{"রাঙ্গামাটি", "rangamati"}},
	{Key: "bandarban", Aliases: []string{"বান্দরবান", "bandarban"}},
	{Key: "khagrachhari", Aliases: []string{"খাগড়াছড়ি", "khagrachhari"}},

	{Key: "uttara", Aliases: []string{"উত্তরা", "uttara"}},
	{Key: "gulshan", Aliases: []string{"গুলশান", "gulshan"}},
	{Key: "dhanmondi", Aliases: []string{"ধানমন্ডি", "dhanmondi"}},
	{Key: "banani", Aliases: []string{"বনানী", "banani"}},
	{Key: "mirpur", Aliases: []string{"মিরপুর", "mirpur"}},
	{Key: "mohammadpur", Aliases: []string{"মোহাম্মদপুর", "mohammadpur"}},
	{Key: "ramna", Aliases: []string{"রমনা", "ramna"}},
	{Key: "tejgaon", Aliases: []string{"তেজগাঁও", "tejgaon"}},
	{Key: "paltan", Aliases: []string{"পল্টন", "paltan"}},
	{Key: "motijheel", Aliases: []string{"মতিঝিল", "motijheel"}},
	{Key: "wari", Aliases: []string{"ওয়ারী", "wari"}},
	{Key: "old_dhaka", Aliases: []string{"পুরান ঢাকা", "old dhaka"}},
	{Key: "shahbag", Aliases: []string{"শাহবাগ", "shahbag"}},
	{Key: "karwan_bazar", Aliases: []string{"কারওয়ান বাজার", "karwan bazar"}},
	{Key: "farmgate", Aliases: []string{"ফার্মগেট", "farmgate"}},
	{Key: "agargaon", Aliases: []string{"আগারগাঁও", "agargaon"}},
	{Key: "badda", Aliases: []string{"বাড্ডা", "badda"}},
	{Key: "rampura", Aliases: []string{"রামপুরা", "rampura"}},
	{Key: "khilgaon", Aliases: []string{"খিলগাঁও", "khilgaon"}},
	{Key: "malibagh", Aliases: []string{"মালিবাগ", "malibagh"}},
	{Key: "mogbazar", Aliases: []string{"মগবাজার", "mogbazar"}},
	{Key: "hatirjheel", Aliases: []string{"হাতিরঝিল", "hatirjheel"}},
	{Key: "bashundhara", Aliases: []string{"বসুন্ধরা", "bashundhara"}},
	{Key: "baridhara", Aliases: []string{"বারিধারা", "baridhara"}},
	{Key: "jatrabari", Aliases: []string{"যাত্রাবাড়ী", "jatrabari"}},
	{Key: "kamalapur", Aliases: []string{"কমলাপুর", "kamalapur"}},
	{Key: "demra", Aliases: []string{"ডেমরা", "demra"}},
	{Key: "keraniganj", Aliases: []string{"কেরানীগঞ্জ", "keraniganj"}},
	{Key: "savar", Aliases: []string{"সাভার", "savar"}},
	{Key: "ashulia", Aliases: []string{"আশুলিয়া", "ashulia"}},
	{Key: "tongi", Aliases: []string{"টঙ্গী", "tongi"}},
}
