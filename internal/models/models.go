package models

import "time"

// BookStatus is the circulation status reported by the server
type BookStatus string

const (
	StatusAvailable BookStatus = "AVAILABLE"
	StatusLoaned    BookStatus = "LOANED"
)

// Book represents a catalogued copy identified by its QR payload
type Book struct {
	ID     int64      `json:"id"`
	Title  string     `json:"title"`
	Author string     `json:"author"`
	QRData string     `json:"qrData"` // opaque, printed on the label and scanned back verbatim
	Status BookStatus `json:"status"`
	Loans  []Loan     `json:"loans,omitempty"`
}

// Member represents a registered borrower
type Member struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Loans []Loan `json:"loans,omitempty"`
}

// Loan binds a book to a member until it is returned
type Loan struct {
	ID         int64      `json:"id,omitempty"`
	BookID     int64      `json:"bookId"`
	MemberID   int64      `json:"memberId"`
	LoanDate   *time.Time `json:"loanDate,omitempty"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	Member     *Member    `json:"member,omitempty"`
}

// Open reports whether the loan has not been returned yet
func (l Loan) Open() bool {
	return l.ReturnDate == nil
}

// Available reports whether the book can be checked out
func (b Book) Available() bool {
	return b.Status != StatusLoaned
}

// ActiveLoan returns the most recent open loan on the book, if any
func (b Book) ActiveLoan() *Loan {
	var active *Loan
	for i := range b.Loans {
		l := &b.Loans[i]
		if !l.Open() {
			continue
		}
		if active == nil || l.newerThan(active) {
			active = l
		}
	}
	return active
}

func (l *Loan) newerThan(o *Loan) bool {
	switch {
	case l.LoanDate != nil && o.LoanDate != nil && !l.LoanDate.Equal(*o.LoanDate):
		return l.LoanDate.After(*o.LoanDate)
	case !l.DueDate.Equal(o.DueDate):
		return l.DueDate.After(o.DueDate)
	default:
		return l.ID > o.ID
	}
}

// TrackResult is the answer to a track lookup
type TrackResult struct {
	Book Book  `json:"book"`
	Loan *Loan `json:"loan,omitempty"`
}

// OpenLoan returns the loan reported with the lookup, falling back to the
// book's own loan history when the server did not single one out
func (r TrackResult) OpenLoan() *Loan {
	if r.Loan != nil && r.Loan.Open() {
		return r.Loan
	}
	return r.Book.ActiveLoan()
}

// RegisteredBook is returned when a book is created
type RegisteredBook struct {
	Book    Book   `json:"book"`
	QRImage string `json:"qrImage,omitempty"` // data URL of a PNG, rendered server side
}

// Confirmation is the body of a successful checkout or return
type Confirmation struct {
	Message string `json:"message"`
	Loan    *Loan  `json:"loan,omitempty"`
}
