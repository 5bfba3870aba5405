package generate

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Constants for the hidden-skill model.
const (
	skillMean      = 1500.0
	eloScale       = 400.0
	scorePerSkill  = 1.0
	scoreNoise     = 250.0
	minScore       = 50
	earlyQuitRate  = 0.02
	newbieUserRate = 0.1
	dayMillis      = 24 * 60 * 60 * 1000
	sessionGap     = 30 * 1000
)

var modes = []string{"pvp_low_teir_1", "pvp_low_teir_2", "pvp_high_teir_1", "lobbie_custom"}

const newbieMode = "newbie_training"

type player struct {
	id           uint64
	skill        float64
	registeredAt uint64
}

type participant struct {
	userID  uint64
	team    int
	score   uint32
	victory bool
	top20   bool
	quit    bool
}

type generatedSession struct {
	id         uint64
	commitTime uint64
	mode       string
	players    []participant
}

// generator draws sessions from a fixed pool of players whose hidden skill
// decides win probability and score.
type generator struct {
	cfg  Config
	rnd  *rand.Rand
	pool []player
	next uint64
	now  uint64
}

func newGenerator(cfg Config) *generator {
	g := &generator{
		cfg:  cfg,
		rnd:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		next: cfg.SessionBase,
		now:  cfg.StartMillis,
	}
	g.pool = make([]player, cfg.Users)
	for i := range g.pool {
		reg := cfg.StartMillis - uint64(g.rnd.Int64N(30*dayMillis)) - dayMillis
		if g.rnd.Float64() < newbieUserRate {
			reg = cfg.StartMillis - 60*60*1000
		}
		g.pool[i] = player{
			id:           uint64(i + 1),
			skill:        skillMean + g.rnd.NormFloat64()*cfg.SkillSpread,
			registeredAt: reg,
		}
	}
	return g
}

// WinProbability is the chance that a team with mean skill a beats one with
// mean skill b.
func WinProbability(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/eloScale))
}

func (g *generator) session() generatedSession {
	s := generatedSession{id: g.next, commitTime: g.now, mode: g.mode()}
	g.next++
	g.now += sessionGap

	picks := g.rnd.Perm(len(g.pool))[:2*g.cfg.TeamSize]
	team1 := picks[:g.cfg.TeamSize]
	team2 := picks[g.cfg.TeamSize:]
	win1 := g.rnd.Float64() < WinProbability(g.meanSkill(team1), g.meanSkill(team2))

	s.players = append(s.players, g.team(team1, 1, win1)...)
	s.players = append(s.players, g.team(team2, 2, !win1)...)
	return s
}

func (g *generator) mode() string {
	if g.rnd.Float64() < g.cfg.NewbieShare {
		return newbieMode
	}
	return modes[g.rnd.IntN(len(modes))]
}

func (g *generator) meanSkill(idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += g.pool[i].skill
	}
	return sum / float64(len(idx))
}

func (g *generator) team(idx []int, team int, victory bool) []participant {
	out := make([]participant, len(idx))
	for k, i := range idx {
		p := g.pool[i]
		score := p.skill*scorePerSkill + g.rnd.NormFloat64()*scoreNoise
		if victory {
			score += scoreNoise
		}
		out[k] = participant{
			userID:  p.id,
			team:    team,
			score:   uint32(math.Max(minScore, score)),
			victory: victory,
			quit:    g.rnd.Float64() < earlyQuitRate,
		}
	}
	// The best fifth of a team by score is its top 20 percent.
	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return out[order[a]].score > out[order[b]].score })
	top := max(1, len(out)/5)
	for _, i := range order[:top] {
		out[i].top20 = true
	}
	return out
}
