package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexlib/glean/internal/checkpoint"
	"github.com/cortexlib/glean/internal/home"
)

var statusCmd = &cobra.Command{
	Use:   "status [book-id]",
	Short: "Show checkpoint progress for a book",
	Long: `Show extraction progress recorded in the checkpoint store.

Without arguments, lists all books that have checkpoints. With a book ID,
prints per-chapter chunk completion.

Examples:
  glean status
  glean status 3f2a9c1d8e4b6a07`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			return listBooks(h)
		}
		return bookStatus(h, args[0])
	},
}

func listBooks(h *home.Dir) error {
	entries, err := os.ReadDir(h.CheckpointsPath())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No checkpoints found.")
			return nil
		}
		return err
	}

	books := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			books = append(books, e.Name())
		}
	}
	if len(books) == 0 {
		fmt.Println("No checkpoints found.")
		return nil
	}

	sort.Strings(books)
	fmt.Printf("%d book(s) with checkpoints:\n", len(books))
	for _, id := range books {
		marker := " "
		if _, err := os.Stat(h.ResultsPath(id)); err == nil {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, id)
	}
	fmt.Println("\n(* = results written)")
	return nil
}

func bookStatus(h *home.Dir, bookID string) error {
	dir := h.BookCheckpointsDir(bookID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no checkpoints for book %s", bookID)
		}
		return err
	}

	logger := newLogger()
	store, err := checkpoint.NewFileStore(dir, logger)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	if len(keys) == 0 {
		return fmt.Errorf("no checkpoints for book %s", bookID)
	}
	sort.Strings(keys)

	fmt.Printf("Book %s: %d chapter(s) checkpointed\n", bookID, len(keys))
	complete := 0
	for _, key := range keys {
		rec, err := store.Load(key)
		if err != nil {
			fmt.Printf("  %s: unreadable (%v)\n", key, err)
			continue
		}
		state := "in progress"
		if rec.IsComplete() {
			state = "complete"
			complete++
		}
		fmt.Printf("  %s: %d/%d chunks (%s)\n", key, len(rec.Completed), rec.TotalChunks, state)
	}
	fmt.Printf("%d/%d chapter(s) complete\n", complete, len(keys))

	if path := h.ResultsPath(bookID); fileExists(path) {
		fmt.Printf("Results: %s\n", path)
	}
	if path := h.CallLogPath(bookID); fileExists(path) {
		fmt.Printf("Call log: %s\n", path)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
