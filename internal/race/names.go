package race

import (
	"math/rand/v2"
	"strconv"
)

var aliasPool = []string{
	"CaptainWaffles", "SirTyposALot", "QuantumBanana", "TurboHamster", "ByteMeBro",
	"404SpeedNotFound", "MajesticToaster", "ColonelKeyboard", "SpaceSausage",
	"LintWizard", "NeonPotato", "PanicAtTheDiscoKey", "FuzzyFirewall", "CryptoPenguin",
	"LatencyLlama", "PacketPirate", "SyntaxSamurai", "WPMWarlock", "GremlinGears",
	"GlitchGoblin", "ChonkChampion", "SnackOps", "NullPointerNinja", "MemeMachine",
}

var snippets = []string{
	"The quick brown fox jumps over the lazy dog.",
	"Cloudflare Workers let you run JavaScript on the edge.",
	"Durable Objects are useful for real-time apps.",
}

// pickAlias returns a random pool alias not in used, falling back to
// ChaosGoblinN once the pool is exhausted.
func pickAlias(used map[string]int) string {
	free := make([]string, 0, len(aliasPool))
	for _, n := range aliasPool {
		if _, taken := used[n]; !taken {
			free = append(free, n)
		}
	}
	if len(free) > 0 {
		return free[rand.IntN(len(free))]
	}
	for n := len(used) + 1; ; n++ {
		candidate := "ChaosGoblin" + strconv.Itoa(n)
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}

// RandomSnippet picks one of the built-in race texts.
func RandomSnippet() string {
	return snippets[rand.IntN(len(snippets))]
}
