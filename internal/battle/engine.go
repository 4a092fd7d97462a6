// Package battle resolves the turn-based fight between the player and the boss.
//
// The engine is a small state machine driven from a single goroutine. Player
// input moves a two-level menu cursor and confirms an action; the boss acts
// automatically once its turn begins. Every resolved action is followed by a
// post-action display window during which input is ignored, and the fight ends
// the moment either side's health reaches zero.
package battle

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/tatianab/gamegen/internal/models"
	"github.com/tatianab/gamegen/internal/random"
)

// Phase is the engine's current state.
type Phase int

const (
	PlayerChoosing Phase = iota
	PlayerResolving
	PostActionDisplay
	BossChoosing
	BossResolving
	Finished
)

func (p Phase) String() string {
	switch p {
	case PlayerChoosing:
		return "PlayerChoosing"
	case PlayerResolving:
		return "PlayerResolving"
	case PostActionDisplay:
		return "PostActionDisplay"
	case BossChoosing:
		return "BossChoosing"
	case BossResolving:
		return "BossResolving"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Side identifies a combatant.
type Side int

const (
	Player Side = iota
	Boss
)

func (s Side) String() string {
	if s == Boss {
		return "boss"
	}
	return "player"
}

// Menu categories, in display order.
const (
	CategoryAttack = "Attack"
	CategoryItem   = "Item"
)

// Categories lists the main menu entries.
var Categories = []string{CategoryAttack, CategoryItem}

const (
	DefaultDisplayDwell   = 1500 * time.Millisecond
	DefaultBossItemUses   = 2
	DefaultBossItemChance = 30 // percent
	DefaultMaxTurns       = 200
)

var (
	// ErrNotPlayerTurn is returned when player input arrives outside PlayerChoosing.
	ErrNotPlayerTurn = errors.New("not the player's turn to choose")
	// ErrNotBossTurn is returned when the boss is asked to act outside BossChoosing.
	ErrNotBossTurn = errors.New("not the boss's turn to choose")
	// ErrNoAction is returned when the selected menu category is empty.
	ErrNoAction = errors.New("no action selected")
	// ErrNoUsesLeft is returned when a limited item budget is spent.
	ErrNoUsesLeft = errors.New("no item uses left")
)

// Options tune the engine. Zero values pick the defaults.
type Options struct {
	Rand           *rand.Rand
	DisplayDwell   time.Duration
	BossItemUses   int // shared item budget for the boss, negative for unlimited
	BossItemChance int // percent chance the boss reaches for an item
	PlayerItemUses int // 0 or negative means unlimited
	MaxTurns       int
}

func (o Options) withDefaults() (Options, error) {
	if o.Rand == nil {
		r, err := random.New(0)
		if err != nil {
			return o, err
		}
		o.Rand = r
	}
	if o.DisplayDwell <= 0 {
		o.DisplayDwell = DefaultDisplayDwell
	}
	if o.BossItemUses == 0 {
		o.BossItemUses = DefaultBossItemUses
	}
	if o.BossItemChance == 0 {
		o.BossItemChance = DefaultBossItemChance
	}
	if o.MaxTurns <= 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	return o, nil
}

// Combatant is one side's live battle state.
type Combatant struct {
	Name      string
	Health    int
	MaxHealth int
	Attacks   []models.Attack
	Items     []models.Item
	ItemUses  int // remaining item uses, -1 for unlimited
}

// Defeated reports whether the combatant is out of health.
func (c Combatant) Defeated() bool {
	return c.Health <= 0
}

func newCombatant(sheet models.CharacterSheet, defaultHealth, itemUses int) Combatant {
	health := sheet.Health
	if health <= 0 {
		health = defaultHealth
	}
	if itemUses <= 0 {
		itemUses = -1
	}
	return Combatant{
		Name:      sheet.Name,
		Health:    health,
		MaxHealth: health,
		Attacks:   append([]models.Attack(nil), sheet.Attacks...),
		Items:     append([]models.Item(nil), sheet.Items...),
		ItemUses:  itemUses,
	}
}

// Outcome is the result of resolving one action.
type Outcome struct {
	Actor       Side
	ActorName   string
	Action      string
	Category    string
	Effect      int // damage dealt or health restored
	Hit         bool
	Healed      bool
	Description string
}

// Engine holds the state of one battle.
type Engine struct {
	opts Options

	player Combatant
	boss   Combatant

	phase    Phase
	turn     Side
	category int
	sub      int
	elapsed  time.Duration
	turns    int
	victory  bool

	outcomes []Outcome
}

// New starts a battle from the two character sheets. Sheets with no health
// fall back to the default pools.
func New(player, boss models.CharacterSheet, opts Options) (*Engine, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("battle options: %w", err)
	}
	return &Engine{
		opts:   opts,
		player: newCombatant(player, models.DefaultPlayerHealth, opts.PlayerItemUses),
		boss:   newCombatant(boss, models.DefaultBossHealth, opts.BossItemUses),
		phase:  PlayerChoosing,
		turn:   Player,
	}, nil
}

func (e *Engine) Phase() Phase { return e.phase }
func (e *Engine) Turn() Side { return e.turn }
func (e *Engine) Finished() bool { return e.phase == Finished }
func (e *Engine) Player() Combatant { return e.player }
func (e *Engine) Boss() Combatant { return e.boss }
func (e *Engine) Turns() int { return e.turns }
func (e *Engine) Outcomes() []Outcome { return append([]Outcome(nil), e.outcomes...) }
func (e *Engine) Cursor() (int, int) { return e.category, e.sub }
func (e *Engine) Category() string { return Categories[e.category] }
func (e *Engine) Dwell() time.Duration { return e.opts.DisplayDwell }

// Victory reports whether the player won. It is only meaningful once Finished.
func (e *Engine) Victory() bool {
	return e.phase == Finished && e.victory
}

// LastOutcome returns the most recent resolved action, if any.
func (e *Engine) LastOutcome() (Outcome, bool) {
	if len(e.outcomes) == 0 {
		return Outcome{}, false
	}
	return e.outcomes[len(e.outcomes)-1], true
}

// Transcript returns the description of every resolved action in order.
func (e *Engine) Transcript() []string {
	lines := make([]string, 0, len(e.outcomes))
	for _, o := range e.outcomes {
		lines = append(lines, o.Description)
	}
	return lines
}

// Actions returns the names listed under the current category.
func (e *Engine) Actions() []string {
	var names []string
	if e.Category() == CategoryAttack {
		for _, a := range e.player.Attacks {
			names = append(names, a.Name)
		}
		return names
	}
	for _, it := range e.player.Items {
		names = append(names, it.Name)
	}
	return names
}

// Selected returns the name and description under the cursor.
func (e *Engine) Selected() (string, string, bool) {
	if e.Category() == CategoryAttack {
		if e.sub < len(e.player.Attacks) {
			a := e.player.Attacks[e.sub]
			return a.Name, a.Description, true
		}
		return "", "", false
	}
	if e.sub < len(e.player.Items) {
		it := e.player.Items[e.sub]
		return it.Name, it.Description, true
	}
	return "", "", false
}

func (e *Engine) categoryLen() int {
	if e.Category() == CategoryAttack {
		return len(e.player.Attacks)
	}
	return len(e.player.Items)
}

// SelectMainCategory moves the category cursor by dir, wrapping around. The
// sub-action cursor is clamped into the new category's bounds.
func (e *Engine) SelectMainCategory(dir int) bool {
	if e.phase != PlayerChoosing {
		return false
	}
	e.category = wrap(e.category+dir, len(Categories))
	if n := e.categoryLen(); e.sub >= n {
		e.sub = max(n-1, 0)
	}
	return true
}

// SelectSubAction moves the sub-action cursor by dir, wrapping around.
func (e *Engine) SelectSubAction(dir int) bool {
	if e.phase != PlayerChoosing {
		return false
	}
	n := e.categoryLen()
	if n == 0 {
		return false
	}
	e.sub = wrap(e.sub+dir, n)
	return true
}

// ConfirmAction resolves the action under the cursor for the player.
func (e *Engine) ConfirmAction() (Outcome, error) {
	if e.phase != PlayerChoosing {
		return Outcome{}, ErrNotPlayerTurn
	}
	if e.sub >= e.categoryLen() {
		return Outcome{}, ErrNoAction
	}
	if e.Category() == CategoryItem && e.player.ItemUses == 0 {
		return Outcome{}, ErrNoUsesLeft
	}

	e.phase = PlayerResolving
	var out Outcome
	if e.Category() == CategoryAttack {
		out = e.resolveAttack(Player, e.player.Attacks[e.sub])
	} else {
		out = e.resolveItem(Player, e.player.Items[e.sub])
	}
	e.afterAction(out)
	return out, nil
}

// ResolveBossTurn lets the boss pick and resolve its action. Advance calls it
// automatically when the boss's turn begins.
func (e *Engine) ResolveBossTurn() (Outcome, error) {
	if e.phase != BossChoosing {
		return Outcome{}, ErrNotBossTurn
	}
	e.phase = BossResolving

	var out Outcome
	r := e.opts.Rand
	switch {
	case e.boss.ItemUses != 0 && len(e.boss.Items) > 0 && r.IntN(100) < e.opts.BossItemChance:
		out = e.resolveItem(Boss, e.boss.Items[r.IntN(len(e.boss.Items))])
	case len(e.boss.Attacks) > 0:
		out = e.resolveAttack(Boss, e.boss.Attacks[r.IntN(len(e.boss.Attacks))])
	default:
		log.Printf("battle: boss %q has no usable actions", e.boss.Name)
		out = e.noEffect(Boss, "nothing", CategoryAttack)
	}
	e.afterAction(out)
	return out, nil
}

// Advance moves the display clock forward. Once the post-action window has
// elapsed, the turn passes to the other side; a boss turn resolves right away.
// It reports whether the phase changed.
func (e *Engine) Advance(dt time.Duration) bool {
	if e.phase != PostActionDisplay {
		return false
	}
	e.elapsed += dt
	if e.elapsed < e.opts.DisplayDwell {
		return false
	}
	e.elapsed = 0

	if e.turn == Player {
		e.turn = Boss
		e.phase = BossChoosing
		if _, err := e.ResolveBossTurn(); err != nil {
			log.Printf("battle: boss turn: %v", err)
		}
		return true
	}
	e.turn = Player
	e.phase = PlayerChoosing
	return true
}

func (e *Engine) combatants(actor Side) (self, target *Combatant) {
	if actor == Player {
		return &e.player, &e.boss
	}
	return &e.boss, &e.player
}

func (e *Engine) resolveAttack(actor Side, a models.Attack) Outcome {
	if a.Name == "" || a.Accuracy < 0 || a.Accuracy > 100 {
		log.Printf("battle: malformed attack for %s: %+v", actor, a)
		return e.noEffect(actor, a.Name, CategoryAttack)
	}
	if e.opts.Rand.IntN(100) >= a.Accuracy {
		return e.noEffect(actor, a.Name, CategoryAttack)
	}
	return e.apply(actor, a.Name, CategoryAttack, a.Damage)
}

func (e *Engine) resolveItem(actor Side, it models.Item) Outcome {
	self, _ := e.combatants(actor)
	if self.ItemUses > 0 {
		self.ItemUses--
	}
	if it.Name == "" {
		log.Printf("battle: malformed item for %s: %+v", actor, it)
		return e.noEffect(actor, it.Name, CategoryItem)
	}
	return e.apply(actor, it.Name, CategoryItem, it.Damage)
}

// apply honours the damage sign convention: positive drains the target,
// negative heals the actor up to its max health.
func (e *Engine) apply(actor Side, action, category string, damage int) Outcome {
	self, target := e.combatants(actor)
	out := Outcome{
		Actor:     actor,
		ActorName: self.Name,
		Action:    action,
		Category:  category,
		Hit:       true,
	}
	if damage < 0 {
		healed := min(-damage, self.MaxHealth-self.Health)
		healed = max(healed, 0)
		self.Health += healed
		out.Effect = healed
		out.Healed = true
	} else {
		target.Health = max(target.Health-damage, 0)
		out.Effect = damage
	}
	out.Description = describe(out)
	return out
}

func (e *Engine) noEffect(actor Side, action, category string) Outcome {
	self, _ := e.combatants(actor)
	out := Outcome{
		Actor:     actor,
		ActorName: self.Name,
		Action:    action,
		Category:  category,
	}
	out.Description = describe(out)
	return out
}

func (e *Engine) afterAction(out Outcome) {
	e.outcomes = append(e.outcomes, out)
	e.turns++
	e.elapsed = 0
	if e.checkFinished(out.Actor) {
		return
	}
	if e.turns >= e.opts.MaxTurns {
		// Stalemate: the healthier side, by fraction of max, takes it. Ties go to the boss.
		pf := float64(e.player.Health) / float64(max(e.player.MaxHealth, 1))
		bf := float64(e.boss.Health) / float64(max(e.boss.MaxHealth, 1))
		log.Printf("battle: turn limit %d reached (player %.2f, boss %.2f)", e.opts.MaxTurns, pf, bf)
		e.finish(pf > bf)
		return
	}
	e.phase = PostActionDisplay
}

// checkFinished ends the battle when either side is down. The acting side's
// effect is evaluated first, so its win takes precedence.
func (e *Engine) checkFinished(actor Side) bool {
	playerDown, bossDown := e.player.Defeated(), e.boss.Defeated()
	switch {
	case actor == Player && bossDown:
		e.finish(true)
	case actor == Boss && playerDown:
		e.finish(false)
	case bossDown:
		e.finish(true)
	case playerDown:
		e.finish(false)
	default:
		return false
	}
	return true
}

func (e *Engine) finish(victory bool) {
	e.victory = victory
	e.phase = Finished
}

func describe(o Outcome) string {
	name := o.ActorName
	if name == "" {
		name = "The " + o.Actor.String()
	}
	action := o.Action
	if action == "" {
		action = "a broken move"
	}
	switch {
	case !o.Hit:
		return fmt.Sprintf("%s used %s but missed.", name, action)
	case o.Healed:
		return fmt.Sprintf("%s used %s and healed %d HP.", name, action, o.Effect)
	default:
		return fmt.Sprintf("%s used %s and dealt %d damage.", name, action, o.Effect)
	}
}

func wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}
