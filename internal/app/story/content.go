package story

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/outpost-game/outpost/internal/domain"
)

// ─── Content Files ──────────────────────────────────────────────────────────
//
//	[[milestones]]
//	id = "first-ore"
//	trigger = "ITEM"
//	one_time = true
//	prerequisites = ["arrival"]
//
//	  [milestones.condition]
//	  item_id = "copper-ore"
//
//	  [[milestones.screens]]
//	  kind = "CHOICE"
//	  text = "The ore hums in your hand."
//	  choices = [
//	    { label = "Keep it", effect = { kind = "SET_FLAG", key = "kept_ore", value = "1" } },
//	    { label = "Toss it" },
//	  ]

type contentFile struct {
	Milestones []milestoneFile `toml:"milestones"`
}

type milestoneFile struct {
	ID            string          `toml:"id"`
	Trigger       string          `toml:"trigger"`
	OneTime       *bool           `toml:"one_time"`
	Prerequisites []string        `toml:"prerequisites"`
	Condition     *conditionFile  `toml:"condition"`
	Screens       []domain.Screen `toml:"screens"`
}

type conditionFile struct {
	Level      int       `toml:"level"`
	LocationID string    `toml:"location_id"`
	ItemID     string    `toml:"item_id"`
	Action     string    `toml:"action"`
	After      time.Time `toml:"after"`
}

// DecodeFile reads milestones from a TOML content file.
func DecodeFile(path string) ([]domain.Milestone, error) {
	var f contentFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}
	return f.milestones()
}

// Decode reads milestones from TOML text.
func Decode(text string) ([]domain.Milestone, error) {
	var f contentFile
	md, err := toml.Decode(text, &f)
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode content: unknown keys %v", undecoded)
	}
	return f.milestones()
}

func (f contentFile) milestones() ([]domain.Milestone, error) {
	out := make([]domain.Milestone, 0, len(f.Milestones))
	for i, mf := range f.Milestones {
		m, err := mf.milestone()
		if err != nil {
			return nil, fmt.Errorf("milestone %d (%s): %w", i, mf.ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (mf milestoneFile) milestone() (domain.Milestone, error) {
	id := strings.TrimSpace(mf.ID)
	if id == "" {
		return domain.Milestone{}, fmt.Errorf("%w: id is required", domain.ErrInvalidArgument)
	}
	kind, err := domain.ParseTriggerKind(mf.Trigger)
	if err != nil {
		return domain.Milestone{}, err
	}
	cond, err := mf.Condition.build(kind)
	if err != nil {
		return domain.Milestone{}, err
	}

	screens := make([]domain.Screen, len(mf.Screens))
	for i, s := range mf.Screens {
		if s.Kind == "" {
			s.Kind = domain.ScreenNarrative
		}
		if s.Kind != domain.ScreenNarrative && s.Kind != domain.ScreenChoice {
			return domain.Milestone{}, fmt.Errorf("%w: screen %d has unknown kind %q", domain.ErrInvalidArgument, i, s.Kind)
		}
		for j := range s.Choices {
			if s.Choices[j].Effect.Kind == "" {
				s.Choices[j].Effect.Kind = domain.EffectNone
			}
		}
		screens[i] = s
	}

	oneTime := true
	if mf.OneTime != nil {
		oneTime = *mf.OneTime
	}
	return domain.Milestone{
		ID:            id,
		Trigger:       kind,
		Condition:     cond,
		Screens:       screens,
		OneTime:       oneTime,
		Prerequisites: mf.Prerequisites,
	}, nil
}

// build turns the untyped file payload into the condition variant matching
// the trigger kind. A missing payload yields a nil condition.
func (c *conditionFile) build(kind domain.TriggerKind) (domain.Condition, error) {
	if kind == domain.TriggerManual {
		return domain.ManualCondition{}, nil
	}
	if c == nil {
		return nil, nil
	}
	missing := func(field string) error {
		return fmt.Errorf("%w: %s condition needs %s", domain.ErrInvalidArgument, kind, field)
	}
	switch kind {
	case domain.TriggerLevel:
		if c.Level < 1 {
			return nil, missing("level")
		}
		return domain.LevelCondition{Threshold: c.Level}, nil
	case domain.TriggerLocation:
		if c.LocationID == "" {
			return nil, missing("location_id")
		}
		return domain.LocationCondition{LocationID: c.LocationID}, nil
	case domain.TriggerItem:
		if c.ItemID == "" {
			return nil, missing("item_id")
		}
		return domain.ItemCondition{ItemID: c.ItemID}, nil
	case domain.TriggerAction:
		a := domain.ActionKind(strings.ToUpper(c.Action))
		if !a.IsValid() {
			return nil, missing("a valid action")
		}
		return domain.ActionCondition{Action: a}, nil
	case domain.TriggerTime:
		if c.After.IsZero() {
			return nil, missing("after")
		}
		return domain.TimeCondition{After: c.After}, nil
	}
	return nil, nil
}

// LoadFile decodes path and registers every milestone in it.
// It returns how many were registered; duplicates are skipped.
func (r *Registry) LoadFile(path string) (int, error) {
	ms, err := DecodeFile(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range ms {
		if r.Register(m) {
			n++
		}
	}
	return n, nil
}

// ─── Validation ─────────────────────────────────────────────────────────────

// Validate reports content problems that leave milestones unreachable or
// unplayable. None of them stop the engine; they are authoring warnings.
func Validate(ms []domain.Milestone) []string {
	var problems []string

	byID := make(map[string]domain.Milestone, len(ms))
	for _, m := range ms {
		if _, dup := byID[m.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate id", m.ID))
			continue
		}
		byID[m.ID] = m
	}

	for _, m := range ms {
		if len(m.Screens) == 0 {
			problems = append(problems, fmt.Sprintf("%s: no screens", m.ID))
		}
		for i, s := range m.Screens {
			if s.Kind == domain.ScreenChoice && len(s.Choices) == 0 {
				problems = append(problems, fmt.Sprintf("%s: choice screen %d has no choices", m.ID, i))
			}
		}
		for _, p := range m.Prerequisites {
			if p == m.ID {
				problems = append(problems, fmt.Sprintf("%s: requires itself", m.ID))
			} else if _, ok := byID[p]; !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown prerequisite %q", m.ID, p))
			}
		}
	}

	for _, cycle := range prerequisiteCycles(byID) {
		problems = append(problems, fmt.Sprintf("prerequisite cycle: %s", strings.Join(cycle, " → ")))
	}
	return problems
}

// prerequisiteCycles finds cycles in the prerequisite graph with a
// three-colour DFS. Ids are visited in sorted order so output is stable.
func prerequisiteCycles(byID map[string]domain.Milestone) [][]string {
	const (
		white = iota
		grey
		black
	)
	colour := make(map[string]int, len(byID))
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		colour[id] = grey
		stack = append(stack, id)
		for _, p := range byID[id].Prerequisites {
			if _, ok := byID[p]; !ok || p == id {
				continue
			}
			switch colour[p] {
			case white:
				visit(p)
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == p {
						cycle := append([]string{}, stack[i:]...)
						cycles = append(cycles, append(cycle, p))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		colour[id] = black
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if colour[id] == white {
			visit(id)
		}
	}
	return cycles
}
