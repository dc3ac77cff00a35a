package keywords

// Taxonomy is the curated keyword vocabulary, partitioned by category.
type Taxonomy struct {
	Genres    []string
	Scenes    []string
	Localized []string
	Trending  []string
	Niche     []string
}

// All concatenates every category in a fixed order.
func (t Taxonomy) All() []string {
	out := make([]string, 0, len(t.Genres)+len(t.Scenes)+len(t.Localized)+len(t.Trending)+len(t.Niche))
	out = append(out, t.Genres...)
	out = append(out, t.Scenes...)
	out = append(out, t.Localized...)
	out = append(out, t.Trending...)
	out = append(out, t.Niche...)
	return out
}

// DefaultTaxonomy returns a fresh copy of the built-in vocabulary.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Genres: []string{
			"lofi",
			"lo-fi",
			"chill music",
			"jazz BGM",
			"ambient music",
			"piano BGM",
			"classical BGM",
			"acoustic BGM",
			"instrumental music",
			"chillhop",
			"downtempo",
			"meditation music",
		},
		Scenes: []string{
			"study music",
			"work music",
			"focus music",
			"sleep music",
			"relaxing BGM",
			"coffee shop music",
			"reading music",
			"concentration music",
			"background music",
			"calm music",
			"peaceful music",
			"zen music",
		},
		Localized: []string{
			"BGM",
			"作業用BGM",
			"勉強用BGM",
			"リラックス BGM",
			"睡眠用BGM",
			"カフェ BGM",
			"集中BGM",
			"ピアノBGM",
			"ジャズBGM",
			"ヒーリングミュージック",
		},
		Trending: []string{
			"lofi hip hop",
			"jazz hop",
			"city pop",
			"synthwave",
			"bossa nova",
			"japanese lofi",
			"cafe jazz",
			"chill beats",
		},
		Niche: []string{
			"rain sounds",
			"nature sounds",
			"music box",
			"harp music",
			"koto music",
			"cinematic ambient",
			"dark academia music",
			"healing music",
		},
	}
}

// priorityKeywords is ranked by hand, most productive first. It is intentionally
// not derived from the taxonomy.
var priorityKeywords = []string{
	"作業用BGM",
	"lofi",
	"study music",
	"勉強用BGM",
	"chill music",
	"jazz BGM",
	"睡眠用BGM",
	"piano BGM",
	"relaxing BGM",
	"カフェ BGM",
	"lofi hip hop",
	"ambient music",
	"sleep music",
	"ヒーリングミュージック",
	"focus music",
	"chillhop",
	"集中BGM",
	"cafe jazz",
	"meditation music",
	"coffee shop music",
	"ピアノBGM",
	"instrumental music",
	"reading music",
	"rain sounds",
	"bossa nova",
	"ジャズBGM",
	"calm music",
	"downtempo",
	"city pop",
	"music box",
}

// ChannelNamePatterns are channel-title style queries used by channel search discovery.
var ChannelNamePatterns = []string{
	"BGM Channel",
	"Lofi Music",
	"Chill Beats",
	"Study Music",
	"Relaxing Music",
	"Ambient Sounds",
	"ヒーリングミュージック",
	"作業用BGM",
	"カフェミュージック",
}
