// Package openfinance talks to a bill aggregator: it manages bank
// connections with encrypted access tokens and consent lifecycle, and
// imports the aggregator's bills as expenses.
package openfinance

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/contabil/contabil/internal/domain"
	"github.com/contabil/contabil/internal/secrets"
	"github.com/contabil/contabil/internal/store"
)

// consentTerm is how long a granted consent is valid
const consentTerm = 12 // months

// Bill is one payable item reported by the aggregator
type Bill struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"dueDate"`
	Barcode     string          `json:"barcode"`
	IsPaid      bool            `json:"isPaid"`
}

// Client is the aggregator API contract
type Client interface {
	// CreateConnectToken returns a short-lived token used by the connect
	// widget to authorize a new bank link.
	CreateConnectToken(ctx context.Context) (string, error)
	// FetchBills lists the pending bills visible through an access token.
	FetchBills(ctx context.Context, accessToken string) ([]Bill, error)
}

// Store is the persistence contract the service needs. *store.DB satisfies it.
type Store interface {
	CreateConnection(ctx context.Context, c store.BankConnection) error
	GetConnection(ctx context.Context, id string) (*store.BankConnection, error)
	ListConnections(ctx context.Context, userID string) ([]store.BankConnection, error)
	UpdateConnectionStatus(ctx context.Context, id string, status store.ConnectionStatus) error
	TouchConnectionSync(ctx context.Context, id string, at time.Time) error
	CreateConsentLog(ctx context.Context, l store.ConsentLog) error
	CreateSyncLog(ctx context.Context, l store.SyncLog) error
	FindExpenseByExternalID(ctx context.Context, userID, externalID string) (*store.Expense, error)
	CreateExpense(ctx context.Context, e store.Expense) error
}

// Service coordinates the aggregator client, the token cipher, and the store
type Service struct {
	client Client
	store  Store
	cipher *secrets.Cipher
	now    func() time.Time
}

func NewService(client Client, st Store, cipher *secrets.Cipher) *Service {
	return &Service{client: client, store: st, cipher: cipher, now: time.Now}
}

// ConnectToken requests a widget token from the aggregator
func (s *Service) ConnectToken(ctx context.Context) (string, error) {
	token, err := s.client.CreateConnectToken(ctx)
	if err != nil {
		return "", fmt.Errorf("creating connect token: %w", err)
	}
	return token, nil
}

// SaveConnection stores a newly authorized bank link. The access token is
// encrypted before it touches the database, consent runs for twelve months,
// and the grant is audited in the consent log.
func (s *Service) SaveConnection(ctx context.Context, userID, institutionName, accessToken string) (*store.BankConnection, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	provider, err := SlugifyInstitution(institutionName)
	if err != nil {
		return nil, fmt.Errorf("invalid institution name: %w", err)
	}

	sealed, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypting access token: %w", err)
	}

	connection := store.BankConnection{
		ID:               uuid.NewString(),
		UserID:           userID,
		Provider:         provider,
		InstitutionName:  institutionName,
		TokenCiphertext:  sealed.Ciphertext,
		TokenIV:          sealed.IV,
		TokenTag:         sealed.Tag,
		Status:           store.ConnectionActive,
		ConsentExpiresAt: s.now().UTC().AddDate(0, consentTerm, 0),
	}
	if err := s.store.CreateConnection(ctx, connection); err != nil {
		return nil, fmt.Errorf("saving connection: %w", err)
	}

	if err := s.store.CreateConsentLog(ctx, store.ConsentLog{
		ID:           uuid.NewString(),
		ConnectionID: connection.ID,
		UserID:       userID,
		Action:       "GRANTED",
		At:           s.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("logging consent: %w", err)
	}

	return &connection, nil
}

// AccessToken returns the decrypted token for an active connection. A
// connection whose consent has lapsed is marked EXPIRED and refused.
func (s *Service) AccessToken(ctx context.Context, connectionID, userID string) (string, error) {
	connection, err := s.store.GetConnection(ctx, connectionID)
	if err != nil {
		return "", err
	}
	if connection == nil || connection.UserID != userID {
		return "", fmt.Errorf("connection %s not found", connectionID)
	}
	if connection.Status != store.ConnectionActive {
		return "", fmt.Errorf("connection %s is %s", connectionID, connection.Status)
	}
	if s.now().After(connection.ConsentExpiresAt) {
		if err := s.store.UpdateConnectionStatus(ctx, connectionID, store.ConnectionExpired); err != nil {
			return "", fmt.Errorf("marking connection expired: %w", err)
		}
		return "", fmt.Errorf("consent for connection %s has expired", connectionID)
	}

	token, err := s.cipher.Decrypt(secrets.Sealed{
		Ciphertext: connection.TokenCiphertext,
		IV:         connection.TokenIV,
		Tag:        connection.TokenTag,
	})
	if err != nil {
		return "", fmt.Errorf("decrypting access token: %w", err)
	}
	return token, nil
}

// ListConnections returns the user's connections with token material blanked
func (s *Service) ListConnections(ctx context.Context, userID string) ([]store.BankConnection, error) {
	connections, err := s.store.ListConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range connections {
		connections[i].TokenCiphertext = ""
		connections[i].TokenIV = ""
		connections[i].TokenTag = ""
	}
	return connections, nil
}

// RevokeConnection disables a connection and audits the revocation
func (s *Service) RevokeConnection(ctx context.Context, connectionID, userID string) error {
	connection, err := s.store.GetConnection(ctx, connectionID)
	if err != nil {
		return err
	}
	if connection == nil || connection.UserID != userID {
		return fmt.Errorf("connection %s not found", connectionID)
	}

	if err := s.store.UpdateConnectionStatus(ctx, connectionID, store.ConnectionRevoked); err != nil {
		return err
	}
	return s.store.CreateConsentLog(ctx, store.ConsentLog{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		UserID:       userID,
		Action:       "REVOKED",
		At:           s.now().UTC(),
	})
}

// SyncSummary aggregates the outcome of one bill sync
type SyncSummary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// SyncBills fetches the connection's bills and imports the new ones as
// OPEN_FINANCE expenses. Bills already imported (matched by the
// aggregator's bill id) are skipped, so repeated syncs are idempotent. The
// outcome of every run lands in the sync log, failures included.
func (s *Service) SyncBills(ctx context.Context, connectionID, userID string) (SyncSummary, error) {
	var summary SyncSummary

	accessToken, err := s.AccessToken(ctx, connectionID, userID)
	if err != nil {
		s.logSync(ctx, connectionID, summary, err)
		return summary, err
	}

	bills, err := s.client.FetchBills(ctx, accessToken)
	if err != nil {
		err = fmt.Errorf("fetching bills: %w", err)
		s.logSync(ctx, connectionID, summary, err)
		return summary, err
	}

	summary.Total = len(bills)
	for _, bill := range bills {
		existing, err := s.store.FindExpenseByExternalID(ctx, userID, bill.ID)
		if err != nil {
			s.logSync(ctx, connectionID, summary, err)
			return summary, err
		}
		if existing != nil {
			summary.Skipped++
			continue
		}

		title := bill.Description
		if strings.TrimSpace(title) == "" {
			title = "Boleto importado"
		}
		dueDate := bill.DueDate
		if dueDate.IsZero() {
			dueDate = s.now().UTC()
		}

		expense := store.Expense{
			ID:           uuid.NewString(),
			UserID:       userID,
			Title:        title,
			Description:  bill.Description,
			Amount:       bill.Amount.Abs(),
			Category:     CategoryForBillType(bill.Type),
			Date:         dueDate,
			DueDate:      dueDate,
			IsPaid:       bill.IsPaid,
			Source:       store.SourceOpenFinance,
			ExternalID:   bill.ID,
			Barcode:      bill.Barcode,
			ConnectionID: connectionID,
		}
		if err := s.store.CreateExpense(ctx, expense); err != nil {
			err = fmt.Errorf("importing bill %s: %w", bill.ID, err)
			s.logSync(ctx, connectionID, summary, err)
			return summary, err
		}
		summary.Imported++
	}

	s.logSync(ctx, connectionID, summary, nil)
	if err := s.store.TouchConnectionSync(ctx, connectionID, s.now().UTC()); err != nil {
		return summary, fmt.Errorf("recording sync time: %w", err)
	}
	return summary, nil
}

func (s *Service) logSync(ctx context.Context, connectionID string, summary SyncSummary, syncErr error) {
	entry := store.SyncLog{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Imported:     summary.Imported,
		Skipped:      summary.Skipped,
		Status:       "SUCCESS",
		At:           s.now().UTC(),
	}
	if syncErr != nil {
		entry.Status = "FAILED"
		entry.Detail = syncErr.Error()
	}
	if err := s.store.CreateSyncLog(ctx, entry); err != nil {
		// Sync log is best effort; the sync outcome itself already
		// propagated to the caller.
		log.Printf("Warning: recording sync log: %v", err)
	}
}

// CategoryForBillType maps the aggregator's bill type to an expense category
func CategoryForBillType(billType string) domain.Category {
	switch strings.ToUpper(billType) {
	case "ELECTRICITY":
		return domain.CategoryLuz
	case "WATER":
		return domain.CategoryAgua
	case "INTERNET", "PHONE", "MOBILE_PHONE":
		return domain.CategoryInternet
	case "TV", "STREAMING":
		return domain.CategoryAssinaturas
	default:
		return domain.CategoryOutros
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// SlugifyInstitution converts an institution name to a URL-safe slug.
// Examples: "Banco do Brasil" → "banco-do-brasil", "Caixa Econômica" →
// "caixa-economica".
func SlugifyInstitution(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("institution name cannot be empty")
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize institution name %q: %w", name, err)
	}

	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(normalized), "-"), "-")
	if slug == "" {
		return "", fmt.Errorf("institution name %q contains no alphanumeric characters", name)
	}
	return slug, nil
}
