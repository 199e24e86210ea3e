package cmd

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/circdesk/internal/models"
	"github.com/spf13/cobra"
)

func newBooksCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List and register books",
	}
	cmd.AddCommand(newBooksListCmd(opts))
	cmd.AddCommand(newBooksRegisterCmd(opts))
	return cmd
}

func newBooksListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every book with its circulation status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client()
			if err != nil {
				return err
			}
			books, err := client.ListBooks(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list books: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(books) == 0 {
				fmt.Fprintln(out, "No books registered")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-10s %-36s %s\n", "ID", "STATUS", "QR", "TITLE")
			for _, b := range books {
				fmt.Fprintf(out, "%-6d %-10s %-36s %s by %s%s\n", b.ID, b.Status, b.QRData, b.Title, b.Author, loanSuffix(b))
			}
			return nil
		},
	}
}

func loanSuffix(b models.Book) string {
	if b.Available() {
		return ""
	}
	loan := b.ActiveLoan()
	if loan == nil {
		return ""
	}
	return fmt.Sprintf(" (member %d, due %s)", loan.MemberID, loan.DueDate.Format("2006-01-02"))
}

func newBooksRegisterCmd(opts *globalOptions) *cobra.Command {
	var (
		title  string
		author string
		qrOut  string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a book and print its QR code",
		Long: `Registers a book with the circulation API and prints the QR code the
server assigned to it. With --qr-out the label image returned by the server is
saved as a PNG for printing.`,
		Example: `  circdesk books register --title Dune --author "Frank Herbert" --qr-out dune.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client()
			if err != nil {
				return err
			}
			reg, err := client.RegisterBook(cmd.Context(), title, author)
			if err != nil {
				return fmt.Errorf("failed to register book: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered book %d: %s\n", reg.Book.ID, reg.Book.QRData)

			if qrOut == "" {
				return nil
			}
			if reg.QRImage == "" {
				slog.Warn("Server did not return a QR image, nothing written", "path", qrOut)
				return nil
			}
			img, err := decodeDataURL(reg.QRImage)
			if err != nil {
				return fmt.Errorf("failed to decode QR image: %w", err)
			}
			if err := os.WriteFile(qrOut, img, 0644); err != nil {
				return fmt.Errorf("failed to write QR image: %w", err)
			}
			slog.Info("QR image saved", "path", qrOut, "bytes", len(img))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Book title")
	cmd.Flags().StringVar(&author, "author", "", "Book author")
	cmd.Flags().StringVar(&qrOut, "qr-out", "", "Write the server's QR label image to this file")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")

	return cmd
}

// decodeDataURL accepts either a base64 data URL or bare base64
func decodeDataURL(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = payload
	}
	return base64.StdEncoding.DecodeString(s)
}
