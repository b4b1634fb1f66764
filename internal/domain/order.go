package domain

import "time"

type OrderKind string

const (
	OrderKindSouvenir OrderKind = "souvenir"
	OrderKindService  OrderKind = "service"
)

type ProductKind string

const (
	ProductKeychain ProductKind = "keychain"
	ProductMagnet   ProductKind = "magnet"
	ProductPin      ProductKind = "pin"
)

type FinishType string

const (
	FinishLaserCut         FinishType = "laser_cut"
	FinishDTF              FinishType = "dtf"
	FinishEmbroidery       FinishType = "embroidery"
	FinishSublimationSheet FinishType = "sublimation_sheet"
)

type Exhibitor struct {
	NotApplicable bool `json:"not_applicable"`
	FlatQty       int  `json:"flat_qty"`
	TableQty      int  `json:"table_qty"`
}

type Product struct {
	Kind      ProductKind `json:"kind"`
	Pieces    int         `json:"pieces"`
	Designs   int         `json:"designs"`
	Exhibitor Exhibitor   `json:"exhibitor"`
	Notes     string      `json:"notes"`
}

// DesignProgress tracks production of one keychain design. Index is 1-based.
type DesignProgress struct {
	Index        int  `json:"index"`
	PrintedCount int  `json:"printed_count"`
	Completed    bool `json:"completed"`
}

type Image struct {
	ID          string      `json:"id"`
	Path        string      `json:"path"`
	URL         string      `json:"url"`
	CreatedAt   time.Time   `json:"created_at"`
	ProductKind ProductKind `json:"product_kind,omitempty"`
	DesignIndex int         `json:"design_index,omitempty"`
}

// Order is the single persisted record for both order kinds. Souvenir-only
// and service-only fields are zero-valued on the other kind.
type Order struct {
	ID           string     `json:"id"`
	Kind         OrderKind  `json:"kind"`
	Archived     bool       `json:"archived"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
	DeliveryDate string     `json:"delivery_date"` // YYYY-MM-DD, empty when unset

	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`

	// Souvenir fields.
	Destination    string           `json:"destination,omitempty"`
	Products       []Product        `json:"products,omitempty"`
	PackagingReady bool             `json:"packaging_ready"`
	DisplaysReady  bool             `json:"displays_ready"`
	Checklist      []DesignProgress `json:"checklist,omitempty"`

	// Service fields.
	ClientNumber string       `json:"client_number,omitempty"`
	Finishes     []FinishType `json:"finishes,omitempty"`
	Notes        string       `json:"notes,omitempty"`

	Images []Image `json:"images"`
}

func HasKeychain(products []Product) bool {
	for _, p := range products {
		if p.Kind == ProductKeychain {
			return true
		}
	}
	return false
}

// KeychainOf returns the keychain product line, if the order has one.
func KeychainOf(products []Product) (Product, bool) {
	for _, p := range products {
		if p.Kind == ProductKeychain {
			return p, true
		}
	}
	return Product{}, false
}
