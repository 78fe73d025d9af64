package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/madhur53/library-management-system/internal/catalog"
)

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse the catalog",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all books",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				books, err := a.catalog().ListBooks(cmd.Context())
				if err != nil {
					return err
				}
				printBooks(books)
				return nil
			},
		},
		&cobra.Command{
			Use:   "search <query>",
			Short: "Search books by title or author",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				books, err := a.catalog().SearchBooks(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printBooks(books)
				return nil
			},
		},
		&cobra.Command{
			Use:   "availability <bookId>",
			Short: "Show how many copies of a book are available",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				bookID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid book id %q", args[0])
				}
				avail, err := a.catalog().GetAvailability(cmd.Context(), bookID)
				if err != nil {
					return err
				}
				fmt.Printf("Book %d: %d of %d copies available\n",
					avail.BookID, avail.AvailableCopies, avail.TotalCopies)
				return nil
			},
		},
		&cobra.Command{
			Use:   "history",
			Short: "Show your borrow history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := a.sessions.BorrowerID()
				if err != nil {
					return err
				}
				borrows, err := a.catalog().BorrowHistory(cmd.Context(), userID)
				if err != nil {
					return err
				}
				rows := [][]string{{"BORROW", "COPY", "ISSUED", "DUE", "STATUS"}}
				for _, b := range borrows {
					returned := string(b.Status)
					rows = append(rows, []string{
						strconv.FormatInt(b.ID, 10),
						strconv.FormatInt(b.BookCopyID, 10),
						b.IssuedOn.Format("2006-01-02"),
						b.DueOn.Format("2006-01-02"),
						returned,
					})
				}
				printTable(rows)
				return nil
			},
		},
	)
	return cmd
}

func printBooks(books []catalog.Book) {
	rows := [][]string{{"ID", "TITLE", "AUTHOR", "ISBN"}}
	for _, b := range books {
		rows = append(rows, []string{strconv.FormatInt(b.ID, 10), b.Title, b.Author, b.ISBN})
	}
	printTable(rows)
}
