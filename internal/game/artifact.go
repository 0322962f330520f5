package game

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const maxIDAttempts = 64

var namePrefixes = []string{
	"Radiant", "Ancient", "Arcane", "Gleaming", "Stalwart", "Swift", "Mighty", "Graceful",
	"Blazing", "Frigid", "Celestial", "Abyssal", "Eternal", "Phantom", "Thundering",
	"Stormborn", "Hallowed", "Hollow",
}

var nameMaterials = []string{
	"Oaken", "Bronze", "Iron", "Platinum", "Silver", "Golden", "Crystal", "Dragonscale",
	"Runic", "Shadow", "Sunlit", "Elemental", "Tempest", "Ember", "Frost", "Void",
}

var nameTypes = []string{
	"Shield", "Sword", "Staff", "Bow", "Dagger", "Spear", "Axe", "Hammer", "Scepter",
	"Amulet", "Ring", "Necklace", "Crown", "Cloak", "Helm",
}

var descriptionSentences = []string{
	"It hums with a restrained and patient power.",
	"Legend says it once belonged to a forgotten hero.",
	"Whoever carries it seems to stumble into good fortune.",
	"A faint glow lingers on its surface after dusk.",
	"It is the last relic of a kingdom lost to the sea.",
	"The old songs claim it can push back the dark.",
	"It smells faintly of rain and pine resin.",
	"Healers once pressed it against wounds that would not close.",
	"It was carried at the front of a war nobody remembers winning.",
	"Scholars argue it can glimpse tomorrow's weather.",
	"Its engravings shift when nobody is looking.",
	"Touch it and you hear distant voices counting coins.",
	"Starlight seems to pool in its grooves.",
	"It was not forged so much as grown in a single night.",
	"Its weight changes with the mood of its owner.",
	"A seal on its underside has never been broken.",
	"Merchants refuse to appraise it twice.",
	"It stays warm even in deep winter.",
}

func (a Artifact) DisassemblyYield() int64 {
	return DisassemblyYield(a.Rarity, a.Level)
}

// DisassemblyYield adds 10% of the base per level above 1, truncated.
func DisassemblyYield(r Rarity, level int) int64 {
	base := r.BaseYield()
	if level < 1 {
		level = 1
	}
	return base + base*int64(level-1)/10
}

// EnhanceCost is the price of going from level to level+1.
func EnhanceCost(level int) (items, coins int64) {
	return 2 * int64(level), 100 * int64(level)
}

func (a Artifact) LockGlyph() string {
	if a.Locked {
		return "🔒"
	}
	return "🔓"
}

func (a Artifact) Summary() string {
	return fmt.Sprintf("%s ID:%d Lv.%d %s%s %s", a.LockGlyph(), a.ID, a.Level, a.Rarity.Glyph(), a.Rarity, a.Name)
}

type Inventory struct {
	Capacity int
	items    map[int]*Artifact
}

func NewInventory(capacity int, artifacts []*Artifact) *Inventory {
	inv := &Inventory{Capacity: capacity, items: make(map[int]*Artifact, len(artifacts))}
	for _, a := range artifacts {
		inv.items[a.ID] = a
	}
	return inv
}

func (inv *Inventory) Len() int { return len(inv.items) }

func (inv *Inventory) Get(id int) (*Artifact, bool) {
	a, ok := inv.items[id]
	return a, ok
}

func (inv *Inventory) Remove(id int) {
	delete(inv.items, id)
}

func (inv *Inventory) Sorted() []*Artifact {
	out := make([]*Artifact, 0, len(inv.items))
	for _, a := range inv.items {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add places a into the inventory, evicting the lowest level unlocked
// artifact when full. When every slot is locked a is not stored and its
// yield is reported as ConvertedYield instead.
func (inv *Inventory) Add(a *Artifact) AddOutcome {
	if inv.Len() < inv.Capacity {
		inv.items[a.ID] = a
		return AddOutcome{Stored: true}
	}
	victim := inv.evictionCandidate()
	if victim == nil {
		return AddOutcome{ConvertedYield: a.DisassemblyYield()}
	}
	inv.Remove(victim.ID)
	inv.items[a.ID] = a
	return AddOutcome{Stored: true, Evicted: victim, EvictedYield: victim.DisassemblyYield()}
}

func (inv *Inventory) evictionCandidate() *Artifact {
	var victim *Artifact
	for _, a := range inv.items {
		if a.Locked {
			continue
		}
		if victim == nil || a.Level < victim.Level || (a.Level == victim.Level && a.ID < victim.ID) {
			victim = a
		}
	}
	return victim
}

// roller yields a uniform integer in [lo, hi].
type roller func(lo, hi int) int

func pickArtifactID(inv *Inventory, roll roller) (int, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := roll(MinArtifactID, MaxArtifactID)
		if _, taken := inv.Get(id); !taken {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %d attempts collided", ErrIDSpaceExhausted, maxIDAttempts)
}

func newArtifact(inv *Inventory, roll roller, now time.Time) (*Artifact, error) {
	name := namePrefixes[roll(0, len(namePrefixes)-1)] + " " +
		nameMaterials[roll(0, len(nameMaterials)-1)] + " " +
		nameTypes[roll(0, len(nameTypes)-1)]

	pool := append([]string(nil), descriptionSentences...)
	picked := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		j := roll(i, len(pool)-1)
		pool[i], pool[j] = pool[j], pool[i]
		picked = append(picked, pool[i])
	}

	rarity := rarityForRoll(roll(1, 100))
	id, err := pickArtifactID(inv, roll)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		ID:              id,
		Name:            name,
		Description:     strings.Join(picked, " "),
		Level:           1,
		BaseYield:       1,
		YieldMultiplier: 1.0,
		Rarity:          rarity,
		SubStats:        []SubStat{},
		CreatedAt:       now.UTC(),
	}, nil
}

func storageReport(inv *Inventory) string {
	if inv.Len() == 0 {
		return "Your artifact storage is empty. Try .draw to win one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Artifact storage (%d/%d):", inv.Len(), inv.Capacity)
	for _, a := range inv.Sorted() {
		b.WriteString("\n")
		b.WriteString(a.Summary())
	}
	return b.String()
}
