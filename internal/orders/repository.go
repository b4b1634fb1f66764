package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Bormex-edergustavo/bormex-nuevo/internal/blob"
	"github.com/Bormex-edergustavo/bormex-nuevo/internal/domain"
)

// Repository is the only mediator between the domain model and storage.
// Order records live in Postgres with products/images/checklist embedded as
// JSONB; image bytes live in the blob store.
type Repository struct {
	db     *sql.DB
	blobs  blob.Store
	logger *slog.Logger
}

func NewRepository(db *sql.DB, blobs blob.Store, logger *slog.Logger) *Repository {
	return &Repository{db: db, blobs: blobs, logger: logger}
}

const orderColumns = `id, kind, archived, created_at, updated_at, archived_at,
	delivery_date, client_name, client_phone, destination,
	products, packaging_ready, displays_ready, checklist,
	client_number, finishes, notes, images`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o          domain.Order
		archivedAt sql.NullTime
		products   []byte
		checklist  []byte
		images     []byte
		finishes   pq.StringArray
	)

	err := row.Scan(
		&o.ID, &o.Kind, &o.Archived, &o.CreatedAt, &o.UpdatedAt, &archivedAt,
		&o.DeliveryDate, &o.ClientName, &o.ClientPhone, &o.Destination,
		&products, &o.PackagingReady, &o.DisplaysReady, &checklist,
		&o.ClientNumber, &finishes, &o.Notes, &images,
	)
	if err != nil {
		return nil, err
	}

	if archivedAt.Valid {
		t := archivedAt.Time
		o.ArchivedAt = &t
	}
	if err := json.Unmarshal(products, &o.Products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if err := json.Unmarshal(checklist, &o.Checklist); err != nil {
		return nil, fmt.Errorf("decode checklist: %w", err)
	}
	if err := json.Unmarshal(images, &o.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	for _, f := range finishes {
		o.Finishes = append(o.Finishes, domain.FinishType(f))
	}

	return &o, nil
}

type SouvenirInput struct {
	ClientName   string           `json:"client_name"`
	ClientPhone  string           `json:"client_phone"`
	Destination  string           `json:"destination"`
	DeliveryDate string           `json:"delivery_date"`
	Products     []domain.Product `json:"products"`
}

func (r *Repository) CreateSouvenir(ctx context.Context, input SouvenirInput) (string, error) {
	if input.ClientName == "" {
		return "", domain.Invalid("client_name", "required")
	}
	if err := domain.ValidateProducts(input.Products); err != nil {
		return "", err
	}

	products := make([]domain.Product, len(input.Products))
	for i, p := range input.Products {
		p.Exhibitor = domain.NormalizeExhibitor(p.Exhibitor)
		products[i] = p
	}
	checklist := domain.ChecklistFor(products, nil)

	id := uuid.New().String()
	now := time.Now().UTC()

	productsJSON, err := json.Marshal(products)
	if err != nil {
		return "", fmt.Errorf("encode products: %w", err)
	}
	checklistJSON, err := json.Marshal(checklist)
	if err != nil {
		return "", fmt.Errorf("encode checklist: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, kind, archived, created_at, updated_at,
			delivery_date, client_name, client_phone, destination,
			products, packaging_ready, displays_ready, checklist, images)
		VALUES ($1, $2, FALSE, $3, $3, $4, $5, $6, $7, $8, FALSE, FALSE, $9, '[]')
	`, id, domain.OrderKindSouvenir, now, input.DeliveryDate,
		input.ClientName, input.ClientPhone, input.Destination,
		productsJSON, checklistJSON)
	if err != nil {
		return "", fmt.Errorf("insert souvenir order: %w", err)
	}

	return id, nil
}

type ServiceInput struct {
	ClientName   string              `json:"client_name"`
	ClientNumber string              `json:"client_number"`
	ClientPhone  string              `json:"client_phone"`
	Finishes     []domain.FinishType `json:"finishes"`
	Notes        string              `json:"notes"`
	DeliveryDate string              `json:"delivery_date"`
}

func (r *Repository) CreateService(ctx context.Context, input ServiceInput) (string, error) {
	if input.ClientName == "" {
		return "", domain.Invalid("client_name", "required")
	}
	for _, f := range input.Finishes {
		switch f {
		case domain.FinishLaserCut, domain.FinishDTF, domain.FinishEmbroidery, domain.FinishSublimationSheet:
		default:
			return "", domain.Invalid("finishes", fmt.Sprintf("unknown finish type %q", f))
		}
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	finishes := make([]string, len(input.Finishes))
	for i, f := range input.Finishes {
		finishes[i] = string(f)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, kind, archived, created_at, updated_at,
			delivery_date, client_name, client_phone, client_number,
			finishes, notes, images)
		VALUES ($1, $2, FALSE, $3, $3, $4, $5, $6, $7, $8, $9, '[]')
	`, id, domain.OrderKindService, now, input.DeliveryDate,
		input.ClientName, input.ClientPhone, input.ClientNumber,
		pq.Array(finishes), input.Notes)
	if err != nil {
		return "", fmt.Errorf("insert service order: %w", err)
	}

	return id, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (r *Repository) ListActive(ctx context.Context, kind domain.OrderKind) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE kind = $1 AND NOT archived
		ORDER BY created_at DESC
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *Repository) ListArchived(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE archived
		ORDER BY archived_at DESC NULLS LAST
	`)
	if err != nil {
		return nil, fmt.Errorf("list archived orders: %w", err)
	}
	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// Patch is a partial update; nil fields are left untouched. When Products is
// set, exhibitors are re-normalized and the design checklist is reconciled in
// the same transaction, so the checklist can never drift from the declared
// design count.
type Patch struct {
	ClientName   *string              `json:"client_name,omitempty"`
	ClientPhone  *string              `json:"client_phone,omitempty"`
	Destination  *string              `json:"destination,omitempty"`
	DeliveryDate *string              `json:"delivery_date,omitempty"`
	Products     *[]domain.Product    `json:"products,omitempty"`
	ClientNumber *string              `json:"client_number,omitempty"`
	Finishes     *[]domain.FinishType `json:"finishes,omitempty"`
	Notes        *string              `json:"notes,omitempty"`
}

func (r *Repository) Update(ctx context.Context, id string, patch Patch) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order for update: %w", err)
	}

	if patch.ClientName != nil {
		order.ClientName = *patch.ClientName
	}
	if patch.ClientPhone != nil {
		order.ClientPhone = *patch.ClientPhone
	}
	if patch.Destination != nil {
		order.Destination = *patch.Destination
	}
	if patch.DeliveryDate != nil {
		order.DeliveryDate = *patch.DeliveryDate
	}
	if patch.ClientNumber != nil {
		order.ClientNumber = *patch.ClientNumber
	}
	if patch.Notes != nil {
		order.Notes = *patch.Notes
	}
	if patch.Finishes != nil {
		order.Finishes = *patch.Finishes
	}
	if patch.Products != nil {
		products := make([]domain.Product, len(*patch.Products))
		for i, p := range *patch.Products {
			p.Exhibitor = domain.NormalizeExhibitor(p.Exhibitor)
			products[i] = p
		}
		if err := domain.ValidateProducts(products); err != nil {
			return nil, err
		}
		order.Products = products
		order.Checklist = domain.ChecklistFor(products, order.Checklist)
	}
	order.UpdatedAt = time.Now().UTC()

	productsJSON, err := json.Marshal(order.Products)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	checklistJSON, err := json.Marshal(order.Checklist)
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}
	finishes := make([]string, len(order.Finishes))
	for i, f := range order.Finishes {
		finishes[i] = string(f)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET client_name = $2, client_phone = $3, destination = $4,
			delivery_date = $5, products = $6, checklist = $7,
			client_number = $8, finishes = $9, notes = $10, updated_at = $11
		WHERE id = $1
	`, id, order.ClientName, order.ClientPhone, order.Destination,
		order.DeliveryDate, productsJSON, checklistJSON,
		order.ClientNumber, pq.Array(finishes), order.Notes, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return order, nil
}

func (r *Repository) Archive(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET archived = TRUE, archived_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("archive order: %w", err)
	}
	return requireRow(result)
}

func (r *Repository) Restore(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET archived = FALSE, archived_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("restore order: %w", err)
	}
	return requireRow(result)
}

// Delete removes the order record after a best-effort sweep of its blobs.
// A blob that fails to delete is logged and skipped, never a reason to keep
// the record around.
func (r *Repository) Delete(ctx context.Context, id string) error {
	order, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, img := range order.Images {
		if img.Path == "" {
			continue
		}
		if err := r.blobs.Delete(ctx, img.Path); err != nil {
			r.logger.Warn("failed to delete order image blob",
				"order_id", id, "path", img.Path, "error", err)
		}
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return requireRow(result)
}

// EmptyArchive deletes every order archived at the time of the call. The
// archived set is snapshotted once; orders archived afterwards survive.
func (r *Repository) EmptyArchive(ctx context.Context) (int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM orders WHERE archived`)
	if err != nil {
		return 0, fmt.Errorf("snapshot archived orders: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	deleted := 0
	for _, id := range ids {
		err := r.Delete(ctx, id)
		if errors.Is(err, domain.ErrOrderNotFound) {
			continue // already gone, someone beat us to it
		}
		if err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

type ImageMeta struct {
	ProductKind domain.ProductKind
	DesignIndex int
}

// AttachImage uploads the content to the blob store under a per-order path
// with a unique suffix, then appends the image record with a JSONB array
// append. The append is atomic in Postgres, so two clients attaching at the
// same time cannot clobber each other's entries.
func (r *Repository) AttachImage(ctx context.Context, orderID, filename string, content io.Reader, meta ImageMeta) (*domain.Image, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, domain.ErrOrderNotFound
	}

	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	imageID := uuid.New().String()
	blobPath := fmt.Sprintf("orders/%s/%s%s", orderID, imageID, ext)

	url, err := r.blobs.Put(ctx, blobPath, content)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	img := domain.Image{
		ID:          imageID,
		Path:        blobPath,
		URL:         url,
		CreatedAt:   time.Now().UTC(),
		ProductKind: meta.ProductKind,
		DesignIndex: meta.DesignIndex,
	}
	imgJSON, err := json.Marshal([]domain.Image{img})
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET images = images || $2::jsonb, updated_at = NOW()
		WHERE id = $1
	`, orderID, imgJSON)
	if err != nil {
		return nil, fmt.Errorf("append image: %w", err)
	}
	if err := requireRow(result); err != nil {
		// Order vanished between the existence check and the append; don't
		// leave the blob orphaned.
		if derr := r.blobs.Delete(ctx, blobPath); derr != nil {
			r.logger.Warn("failed to clean up orphaned blob", "path", blobPath, "error", derr)
		}
		return nil, err
	}

	return &img, nil
}

// DetachImage deletes the blob (best effort) and removes the matching entry
// from the order's image list by path.
func (r *Repository) DetachImage(ctx context.Context, orderID, imagePath string) error {
	if err := r.blobs.Delete(ctx, imagePath); err != nil {
		r.logger.Warn("failed to delete image blob",
			"order_id", orderID, "path", imagePath, "error", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET images = COALESCE(
				(SELECT jsonb_agg(img)
				 FROM jsonb_array_elements(images) AS img
				 WHERE img->>'path' <> $2),
				'[]'::jsonb),
			updated_at = NOW()
		WHERE id = $1
	`, orderID, imagePath)
	if err != nil {
		return fmt.Errorf("remove image entry: %w", err)
	}
	return requireRow(result)
}

func (r *Repository) SetPackagingReady(ctx context.Context, id string, ready bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET packaging_ready = $2, updated_at = NOW() WHERE id = $1
	`, id, ready)
	if err != nil {
		return fmt.Errorf("set packaging ready: %w", err)
	}
	return requireRow(result)
}

func (r *Repository) SetDisplaysReady(ctx context.Context, id string, ready bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET displays_ready = $2, updated_at = NOW() WHERE id = $1
	`, id, ready)
	if err != nil {
		return fmt.Errorf("set displays ready: %w", err)
	}
	return requireRow(result)
}

type DesignPatch struct {
	PrintedCount *int  `json:"printed_count,omitempty"`
	Completed    *bool `json:"completed,omitempty"`
}

// UpdateDesignProgress patches one checklist entry. The printed count is
// clamped to [0, pieces] of the keychain product. An index missing from the
// checklist is a no-op.
func (r *Repository) UpdateDesignProgress(ctx context.Context, orderID string, index int, patch DesignPatch) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin design update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order for design update: %w", err)
	}

	keychain, _ := domain.KeychainOf(order.Products)

	touched := false
	for i, d := range order.Checklist {
		if d.Index != index {
			continue
		}
		if patch.PrintedCount != nil {
			count := *patch.PrintedCount
			if count < 0 {
				count = 0
			}
			if count > keychain.Pieces {
				count = keychain.Pieces
			}
			d.PrintedCount = count
		}
		if patch.Completed != nil {
			d.Completed = *patch.Completed
		}
		order.Checklist[i] = d
		touched = true
	}
	if !touched {
		return order, tx.Commit()
	}

	order.UpdatedAt = time.Now().UTC()
	checklistJSON, err := json.Marshal(order.Checklist)
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET checklist = $2, updated_at = $3 WHERE id = $1
	`, orderID, checklistJSON, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update design progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit design update: %w", err)
	}
	return order, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
