package apitest

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/circdesk/internal/models"
)

var (
	errBookNotFound   = errors.New("Book not found")
	errMemberNotFound = errors.New("Member not found")
	errNotAvailable   = errors.New("Book is not available")
	errNotLoaned      = errors.New("Book is already returned")
)

// LoanPeriod matches the backend's two week lending period
const LoanPeriod = 14 * 24 * time.Hour

// Store is the in-memory state behind the fake API
type Store struct {
	mu      sync.RWMutex
	books   []*models.Book
	members []*models.Member
	loans   []*models.Loan
	nextID  int64
	now     func() time.Time
	// QRData generates the payload for a new book; uuid strings by default.
	QRData func() string
}

func newStore() *Store {
	return &Store{
		now:    time.Now,
		QRData: uuid.NewString,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddBook registers a book with a fixed QR payload
func (s *Store) AddBook(title, author, qrData string) models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &models.Book{ID: s.id(), Title: title, Author: author, QRData: qrData, Status: models.StatusAvailable}
	s.books = append(s.books, b)
	return *b
}

// AddMember registers a member with a fixed id
func (s *Store) AddMember(id int64, name string) models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.nextID {
		s.nextID = id
	}
	m := &models.Member{ID: id, Name: name}
	s.members = append(s.members, m)
	return *m
}

func (s *Store) createBook(title, author string) models.Book {
	return s.AddBook(title, author, s.QRData())
}

func (s *Store) createMember(name string) models.Member {
	s.mu.Lock()
	id := s.id()
	s.mu.Unlock()
	return s.AddMember(id, name)
}

// Book returns a copy of the book with the given payload
func (s *Store) Book(qrData string) (models.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.bookLocked(qrData)
	if b == nil {
		return models.Book{}, false
	}
	return s.withLoansLocked(b), true
}

func (s *Store) bookLocked(qrData string) *models.Book {
	for _, b := range s.books {
		if b.QRData == qrData {
			return b
		}
	}
	return nil
}

func (s *Store) memberLocked(id int64) *models.Member {
	for _, m := range s.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *Store) withLoansLocked(b *models.Book) models.Book {
	out := *b
	out.Loans = nil
	for _, l := range s.loans {
		if l.BookID == b.ID {
			out.Loans = append(out.Loans, *l)
		}
	}
	return out
}

func (s *Store) allBooks() []models.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	books := make([]models.Book, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, s.withLoansLocked(b))
	}
	return books
}

func (s *Store) allMembers() []models.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]models.Member, 0, len(s.members))
	for _, m := range s.members {
		members = append(members, *m)
	}
	return members
}

func (s *Store) checkout(qrData string, memberID int64) (models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookLocked(qrData)
	if b == nil {
		return models.Loan{}, errBookNotFound
	}
	if b.Status != models.StatusAvailable {
		return models.Loan{}, errNotAvailable
	}
	if s.memberLocked(memberID) == nil {
		return models.Loan{}, errMemberNotFound
	}
	now := s.now()
	loan := &models.Loan{
		ID:       s.id(),
		BookID:   b.ID,
		MemberID: memberID,
		LoanDate: &now,
		DueDate:  now.Add(LoanPeriod),
	}
	s.loans = append(s.loans, loan)
	b.Status = models.StatusLoaned
	return *loan, nil
}

func (s *Store) giveBack(qrData string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookLocked(qrData)
	if b == nil {
		return errBookNotFound
	}
	if b.Status == models.StatusAvailable {
		return errNotLoaned
	}
	now := s.now()
	for _, l := range s.loans {
		if l.BookID == b.ID && l.Open() {
			l.ReturnDate = &now
		}
	}
	b.Status = models.StatusAvailable
	return nil
}

func (s *Store) track(qrData string) (models.TrackResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.bookLocked(qrData)
	if b == nil {
		return models.TrackResult{}, errBookNotFound
	}
	res := models.TrackResult{Book: *b}
	for _, l := range s.loans {
		if l.BookID == b.ID && l.Open() {
			loan := *l
			if m := s.memberLocked(l.MemberID); m != nil {
				member := *m
				loan.Member = &member
			}
			res.Loan = &loan
		}
	}
	return res, nil
}
