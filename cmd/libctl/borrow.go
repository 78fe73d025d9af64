package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/madhur53/library-management-system/internal/borrowflow"
	"github.com/madhur53/library-management-system/internal/domain"
)

func newBorrowCmd(a *app) *cobra.Command {
	var days int
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "borrow <bookId>",
		Short: "Borrow any available copy of a book, with a short undo window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}

			userID, err := a.sessions.BorrowerID()
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			flow := borrowflow.New(a.catalog(), userID, logger,
				borrowflow.WithWindow(window))
			defer flow.Close()

			receipt, err := flow.Borrow(cmd.Context(), bookID, days)
			if err != nil {
				if errors.Is(err, domain.ErrNoCopyAvailable) {
					return errors.New("no copy available")
				}
				return err
			}

			fmt.Printf("Borrowed copy %d of book %d, due %s\n",
				receipt.BookCopyID, receipt.BookID, receipt.DueOn)
			fmt.Printf("Type \"undo\" within %s to cancel: ", window)

			if undoRequested(cmd.InOrStdin(), window) {
				if _, err := flow.Undo(cmd.Context()); err != nil {
					if errors.Is(err, borrowflow.ErrNothingToUndo) {
						fmt.Println("Too late, the borrow is final.")
					} else {
						fmt.Printf("Undo failed (%v); the copy is still yours.\n", err)
					}
				} else {
					fmt.Println("Borrow undone.")
				}
			} else {
				fmt.Println("\nBorrow confirmed.")
			}

			if avail, err := flow.Refresh(cmd.Context()); err == nil {
				fmt.Printf("Book %d now has %d of %d copies available.\n",
					avail.BookID, avail.AvailableCopies, avail.TotalCopies)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", domain.DefaultLoanDays,
		fmt.Sprintf("loan duration in days (1-%d)", domain.MaxLoanDays))
	cmd.Flags().DurationVar(&window, "undo-window", borrowflow.DefaultWindow,
		"how long the borrow stays undoable")
	return cmd
}

// undoRequested waits up to window for the user to type "undo" on stdin.
func undoRequested(in io.Reader, window time.Duration) bool {
	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		if scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	select {
	case line := <-lines:
		return strings.EqualFold(line, "undo")
	case <-time.After(window):
		return false
	}
}

func newReturnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return <copyId>",
		Short: "Return a borrowed copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			copyID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid copy id %q", args[0])
			}

			userID, err := a.sessions.BorrowerID()
			if err != nil {
				return err
			}

			receipt, err := a.catalog().ReturnCopy(cmd.Context(), copyID, userID, 0)
			if err != nil {
				return err
			}
			fmt.Printf("Returned copy %d on %s\n", copyID, receipt.ReturnedOn)
			if receipt.Note != "" {
				fmt.Println(receipt.Note)
			}
			return nil
		},
	}
}
