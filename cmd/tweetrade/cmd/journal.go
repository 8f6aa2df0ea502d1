package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tweetrade/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query match and order history",
	Long: `Query and display rule matches and their orders from the journal.

Subcommands:
  match  - Get one match and its orders by ID
  today  - List matches recorded today
  day    - List matches recorded on a specific day

Examples:
  tweetrade journal match <match-id>
  tweetrade journal today
  tweetrade journal day 2026-08-30`,
}

var journalMatchCmd = &cobra.Command{
	Use:   "match <match-id>",
	Short: "Get one match and its orders",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalMatch,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List matches recorded today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List matches recorded on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalMatchCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to journal DB (default from config)")
}

func openJournal() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Journal.DBPath
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalMatch(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	matchID := args[0]
	rec, err := j.GetMatch(matchID)
	if err != nil {
		return fmt.Errorf("get match: %w", err)
	}
	orders, err := j.ListOrdersByMatch(matchID)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	fmt.Println(journal.FormatMatchOrg(rec, orders))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	loc := time.Local
	return printDay(time.Now().In(loc).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return printDay(args[0])
}

func printDay(day string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	matches, err := j.ListMatchesBetween(start, end)
	if err != nil {
		return fmt.Errorf("query matches: %w", err)
	}

	byMatch := map[string][]journal.OrderRecord{}
	for _, m := range matches {
		orders, err := j.ListOrdersByMatch(m.MatchID)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		byMatch[m.MatchID] = orders
	}

	fmt.Println(journal.FormatMatchesOrg(matches, byMatch))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
