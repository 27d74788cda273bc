// Command srs is a thin line-oriented wrapper around the spaced-repetition
// engine: card entry, due listing, grading, history, and recovery. All
// presentation beyond plain lines belongs to the surrounding application.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mynotes/srs/internal/config"
	"github.com/mynotes/srs/internal/domain"
	"github.com/mynotes/srs/internal/dueset"
	"github.com/mynotes/srs/internal/review"
	"github.com/mynotes/srs/internal/storage"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const usage = `usage: srs [flags] <command> [args]

commands:
  add        add a card (--front, --back, --type, --tags)
  list       list cards, optionally --filter <new|due|blackout|hard|medium|easy|perfect|mastered>
  due        list the due queue for the configured deck
  review     grade due cards interactively (0-5, u undo, q quit)
  grade      grade a card directly: grade <card-id> <quality 0-5>
  history    show a card's review ledger: history <card-id>
  stats      show a card's review summary: stats <card-id>
  rebuild    rederive a card's state from its ledger: rebuild <card-id>
`

func main() {
	flags := pflag.NewFlagSet("srs", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	flags.String("db", "", "path to the SQLite database file")
	flags.String("deck", "", "deck to operate on")
	flags.String("log_level", "", "log level (debug, info, warn, error)")
	front := flags.String("front", "", "front content for 'add'")
	back := flags.String("back", "", "back content for 'add'")
	cardType := flags.String("type", "basic", "card type for 'add' (basic, cloze, mc)")
	tags := flags.StringSlice("tags", nil, "tags for 'add'")
	filter := flags.String("filter", "", "filter for 'list'")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "srs: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "srs: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	now := time.Now()
	switch args[0] {
	case "add":
		err = runAdd(store, cfg, now, *front, *back, *cardType, *tags)
	case "list":
		err = runList(store, cfg.Deck, *filter, now)
	case "due":
		err = runDue(store, cfg.Deck, now)
	case "review":
		err = runReview(store, cfg, logger, now)
	case "grade":
		err = runGrade(store, cfg, logger, now, args[1:])
	case "history":
		err = runHistory(store, args[1:])
	case "stats":
		err = runStats(store, args[1:])
	case "rebuild":
		err = runRebuild(store, cfg, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "srs: unknown command %q\n\n%s", args[0], usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func runAdd(store *storage.Store, cfg config.Config, now time.Time, front, back, typeName string, tags []string) error {
	ct, err := domain.ParseCardType(typeName)
	if err != nil {
		return err
	}
	card, state, err := store.CreateCard(storage.NewCard{
		Front: front,
		Back:  back,
		Type:  ct,
		Deck:  cfg.Deck,
		Tags:  tags,
	}, now)
	if err != nil {
		return err
	}
	fmt.Printf("added %s (%s), due %s\n", card.ID, card.Type, state.DueAt.Format(time.DateOnly))
	return nil
}

func runList(store *storage.Store, deck, filterName string, now time.Time) error {
	cards, err := store.ListCards(deck)
	if err != nil {
		return err
	}
	if filterName != "" {
		f, err := parseFilter(filterName)
		if err != nil {
			return err
		}
		cards = dueset.Apply(cards, f, now)
	}
	for _, c := range cards {
		fmt.Printf("%s  [%s, %s]  ease %.2f  due %s  %s\n",
			c.Card.ID, c.State.Stage, domain.BucketOf(c.State),
			c.State.EaseFactor, c.State.DueAt.Format(time.DateOnly), c.Card.Front)
	}
	fmt.Printf("%d cards\n", len(cards))
	return nil
}

func parseFilter(name string) (dueset.Filter, error) {
	switch strings.ToLower(name) {
	case "new":
		return dueset.New, nil
	case "due":
		return dueset.DueNow, nil
	case "blackout":
		return dueset.Blackout, nil
	case "hard":
		return dueset.Hard, nil
	case "medium":
		return dueset.Medium, nil
	case "easy":
		return dueset.Easy, nil
	case "perfect":
		return dueset.Perfect, nil
	case "mastered":
		return dueset.Mastered, nil
	default:
		return dueset.All, fmt.Errorf("unknown filter %q", name)
	}
}

func runDue(store *storage.Store, deck string, now time.Time) error {
	cards, err := store.ListCards(deck)
	if err != nil {
		return err
	}
	due := dueset.Due(cards, now)
	for _, c := range due {
		fmt.Printf("%s  [%s]  due %s  %s\n",
			c.Card.ID, c.State.Stage, c.State.DueAt.Format(time.DateOnly), c.Card.Front)
	}
	fmt.Printf("%d due\n", len(due))
	return nil
}

func runGrade(store *storage.Store, cfg config.Config, logger *zap.Logger, now time.Time, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: grade <card-id> <quality 0-5>")
	}
	q, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("quality must be an integer: %w", err)
	}

	_, state, err := store.GetCard(args[0])
	if err != nil {
		return err
	}
	next, err := cfg.Params().Next(state, domain.Grade(q), now)
	if err != nil {
		return err
	}
	applied, _, err := store.ApplyReview(args[0], next, domain.ReviewRecord{
		ReviewedAt:    now,
		Grade:         domain.Grade(q),
		StageBefore:   state.Stage,
		IntervalAfter: next.IntervalDays,
	})
	if err != nil {
		return err
	}
	logger.Info("card graded", zap.String("card_id", args[0]), zap.Int("grade", q))
	fmt.Printf("%s: %s, interval %dd, due %s\n",
		args[0], applied.Stage, applied.IntervalDays, applied.DueAt.Format(time.DateOnly))
	return nil
}

func runReview(store *storage.Store, cfg config.Config, logger *zap.Logger, now time.Time) error {
	session, err := review.Start(store, cfg.Params(), logger, now, cfg.Deck)
	if err != nil {
		return err
	}
	fmt.Printf("%d cards due\n", session.Remaining())

	in := bufio.NewScanner(os.Stdin)
	for {
		cur, ok := session.Current()
		if !ok {
			fmt.Println("queue empty, session complete")
			return nil
		}
		fmt.Printf("\n[%d left] %s\n(enter to reveal, q to quit) ", session.Remaining(), cur.Card.Front)
		if !in.Scan() || strings.TrimSpace(in.Text()) == "q" {
			return nil
		}
		fmt.Printf("%s\ngrade 0-5 (u undo, q quit): ", cur.Card.Back)
		if !in.Scan() {
			return nil
		}

		switch input := strings.TrimSpace(in.Text()); input {
		case "q":
			return nil
		case "u":
			if _, err := session.UndoLast(); err != nil {
				fmt.Printf("undo: %v\n", err)
			} else {
				fmt.Println("last grade undone")
			}
		default:
			q, err := strconv.Atoi(input)
			if err != nil {
				fmt.Println("enter a grade between 0 and 5")
				continue
			}
			state, err := session.Grade(domain.Grade(q))
			if err != nil {
				// Conflicts and storage failures leave the queue where it
				// was; report and let the user retry.
				fmt.Printf("grade: %v\n", err)
				continue
			}
			fmt.Printf("→ %s, next in %dd\n", state.Stage, state.IntervalDays)
		}
	}
}

func runHistory(store *storage.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: history <card-id>")
	}
	records, err := store.History(args[0])
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%s  grade %d  %s → %dd\n",
			r.ReviewedAt.Format(time.RFC3339), r.Grade, r.StageBefore, r.IntervalAfter)
	}
	fmt.Printf("%d reviews\n", len(records))
	return nil
}

func runStats(store *storage.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stats <card-id>")
	}
	stats, err := store.Stats(args[0])
	if err != nil {
		return err
	}
	last := "never"
	if stats.LastReviewedAt != nil {
		last = stats.LastReviewedAt.Format(time.DateOnly)
	}
	fmt.Printf("reviewed %d times, last on %s, standing: %s\n", stats.Reviews, last, stats.Bucket)
	return nil
}

func runRebuild(store *storage.Store, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rebuild <card-id>")
	}
	state, err := store.RebuildState(args[0], cfg.Params())
	if err != nil {
		return err
	}
	fmt.Printf("rebuilt: %s, interval %dd, due %s\n",
		state.Stage, state.IntervalDays, state.DueAt.Format(time.DateOnly))
	return nil
}
