package domain

import (
	"reflect"
	"testing"
)

func TestNormalizeExhibitor(t *testing.T) {
	t.Run("clamps negative quantities", func(t *testing.T) {
		got := NormalizeExhibitor(Exhibitor{FlatQty: -3, TableQty: -1})
		want := Exhibitor{FlatQty: 0, TableQty: 0}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("not applicable zeroes quantities", func(t *testing.T) {
		got := NormalizeExhibitor(Exhibitor{NotApplicable: true, FlatQty: 5, TableQty: 2})
		want := Exhibitor{NotApplicable: true}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("keeps valid quantities", func(t *testing.T) {
		ex := Exhibitor{FlatQty: 4, TableQty: 1}
		if got := NormalizeExhibitor(ex); got != ex {
			t.Errorf("got %+v, want %+v", got, ex)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []Exhibitor{
			{},
			{NotApplicable: true, FlatQty: 9},
			{FlatQty: -2, TableQty: 7},
		}
		for _, in := range inputs {
			once := NormalizeExhibitor(in)
			if twice := NormalizeExhibitor(once); twice != once {
				t.Errorf("normalize(normalize(%+v)) = %+v, want %+v", in, twice, once)
			}
		}
	})
}

func TestReconcileChecklist(t *testing.T) {
	t.Run("initializes fresh entries", func(t *testing.T) {
		got := ReconcileChecklist(3, nil)
		want := []DesignProgress{{Index: 1}, {Index: 2}, {Index: 3}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("grows while preserving progress", func(t *testing.T) {
		prev := []DesignProgress{
			{Index: 1, PrintedCount: 5, Completed: true},
			{Index: 2},
		}
		got := ReconcileChecklist(3, prev)
		want := []DesignProgress{
			{Index: 1, PrintedCount: 5, Completed: true},
			{Index: 2},
			{Index: 3},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("shrinks by dropping trailing indices", func(t *testing.T) {
		prev := []DesignProgress{
			{Index: 1, PrintedCount: 5, Completed: true},
			{Index: 2, PrintedCount: 3},
			{Index: 3},
		}
		got := ReconcileChecklist(1, prev)
		want := []DesignProgress{{Index: 1, PrintedCount: 5, Completed: true}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("fills gaps in stale input", func(t *testing.T) {
		prev := []DesignProgress{
			{Index: 1, Completed: true},
			{Index: 4, PrintedCount: 9},
		}
		got := ReconcileChecklist(3, prev)
		want := []DesignProgress{
			{Index: 1, Completed: true},
			{Index: 2},
			{Index: 3},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("zero or negative count empties the list", func(t *testing.T) {
		prev := []DesignProgress{{Index: 1, Completed: true}}
		if got := ReconcileChecklist(0, prev); len(got) != 0 {
			t.Errorf("got %+v, want empty", got)
		}
		if got := ReconcileChecklist(-2, prev); len(got) != 0 {
			t.Errorf("got %+v, want empty", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		prev := []DesignProgress{{Index: 1, PrintedCount: 2}, {Index: 2, Completed: true}}
		once := ReconcileChecklist(2, prev)
		twice := ReconcileChecklist(2, once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("second reconcile changed the list: %+v vs %+v", once, twice)
		}
	})
}

func TestChecklistFor(t *testing.T) {
	t.Run("no keychain means no checklist", func(t *testing.T) {
		products := []Product{{Kind: ProductMagnet, Designs: 4}}
		if got := ChecklistFor(products, []DesignProgress{{Index: 1}}); len(got) != 0 {
			t.Errorf("got %+v, want empty", got)
		}
	})

	t.Run("sized to the keychain design count", func(t *testing.T) {
		products := []Product{
			{Kind: ProductPin, Designs: 9},
			{Kind: ProductKeychain, Designs: 2},
		}
		got := ChecklistFor(products, nil)
		if len(got) != 2 {
			t.Errorf("got %d entries, want 2", len(got))
		}
	})
}

func TestValidateProducts(t *testing.T) {
	valid := []Product{{Kind: ProductKeychain, Pieces: 10, Designs: 2}}
	if err := ValidateProducts(valid); err != nil {
		t.Errorf("valid products rejected: %v", err)
	}

	cases := []struct {
		name     string
		products []Product
	}{
		{"empty", nil},
		{"too many", []Product{{Kind: ProductKeychain}, {Kind: ProductMagnet}, {Kind: ProductPin}, {Kind: ProductKeychain}}},
		{"duplicate kind", []Product{{Kind: ProductPin}, {Kind: ProductPin}}},
		{"unknown kind", []Product{{Kind: "sticker"}}},
		{"negative pieces", []Product{{Kind: ProductMagnet, Pieces: -1}}},
		{"negative designs", []Product{{Kind: ProductMagnet, Designs: -1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateProducts(tc.products)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}
