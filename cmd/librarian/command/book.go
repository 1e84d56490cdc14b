package command

import (
	"context"
	"fmt"

	"libraryhub/internal/app"
	"libraryhub/internal/microservices/http-api/models"

	"github.com/spf13/cobra"
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Manage the catalogue",
}

var bookAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Shelve a new title",
	RunE: func(cmd *cobra.Command, args []string) error {
		var b models.Book
		b.ISBN, _ = cmd.Flags().GetString("isbn")
		b.Title, _ = cmd.Flags().GetString("title")
		b.Author, _ = cmd.Flags().GetString("author")
		b.TotalCopies, _ = cmd.Flags().GetInt("copies")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			book, err := a.Books.CreateBook(ctx, &b)
			if err != nil {
				return fmt.Errorf("add book: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %q shelved with %d copies\n", book.Title, book.AvailableCopies)
			fmt.Fprintf(cmd.OutOrStdout(), "BookID: %s\n", book.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(bookCmd)
	bookCmd.AddCommand(bookAddCmd)

	bookAddCmd.Flags().String("isbn", "", "ISBN")
	bookAddCmd.Flags().StringP("title", "t", "", "Title")
	bookAddCmd.Flags().StringP("author", "a", "", "Author")
	bookAddCmd.Flags().IntP("copies", "c", 1, "Number of copies")
	bookAddCmd.MarkFlagRequired("isbn")
	bookAddCmd.MarkFlagRequired("title")
	bookAddCmd.MarkFlagRequired("author")
}
