package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// fanOutLimit bounds the goroutines of one parallel phase.
const fanOutLimit = 8

// CompletePropertyInput creates a building with contacts, lots and lot
// contacts. LotContacts is keyed by the index of the lot in Lots.
type CompletePropertyInput struct {
	Building         CreateBuildingInput         `yaml:"building"`
	BuildingContacts []ContactAssignment         `yaml:"contacts"`
	Lots             []CreateLotInput            `yaml:"lots"`
	LotContacts      map[int][]ContactAssignment `yaml:"lot_contacts"`
}

// PropertyData holds the state of a property after a composite operation.
type PropertyData struct {
	Building         *domain.Building            `json:"building,omitempty"`
	BuildingContacts []domain.Contact            `json:"building_contacts,omitempty"`
	Lots             []domain.Lot                `json:"lots,omitempty"`
	LotContacts      map[string][]domain.Contact `json:"lot_contacts,omitempty"`
	DeletedLots      []string                    `json:"deleted_lots,omitempty"`
}

// CreateCompleteProperty runs building → building contacts → lots → lot
// contacts. A failure removes lot contacts, lots, building contacts and the
// building, in that order.
func (s *CompositeService) CreateCompleteProperty(ctx context.Context, in CompletePropertyInput) CompositeResult[PropertyData] {
	j := newJournal(s.stamps)
	data := PropertyData{LotContacts: make(map[string][]domain.Contact)}

	for idx := range in.LotContacts {
		if idx < 0 || idx >= len(in.Lots) {
			err := domain.Invalid("lot_contacts", idx, "no lot at index %d", idx)
			return failed(j, data, err)
		}
	}

	b, err := s.createBuilding(ctx, j, in.Building)
	if err != nil {
		return abort(ctx, j, data, err)
	}
	data.Building = &b

	if len(in.BuildingContacts) > 0 {
		err = j.Run(ctx, op(OpCreate, contactService, "building_contacts", in.BuildingContacts),
			s.contacts.RemoveBuildingContacts,
			func(ctx context.Context) (string, error) {
				contacts, err := s.contacts.AssignBuildingContacts(ctx, b.ID, in.BuildingContacts)
				if err != nil {
					return "", err
				}
				data.BuildingContacts = contacts
				return b.ID, nil
			})
		if err != nil {
			return abort(ctx, j, data, err)
		}
	}

	lots, err := s.createLots(ctx, j, b.ID, in.Lots)
	data.Lots = lots
	if err != nil {
		return abort(ctx, j, data, err)
	}

	for i, lot := range lots {
		assignments := in.LotContacts[i]
		if len(assignments) == 0 {
			continue
		}
		lotID := lot.ID
		err = j.Run(ctx, op(OpCreate, contactService, "lot_contacts", assignments),
			s.contacts.RemoveLotContacts,
			func(ctx context.Context) (string, error) {
				contacts, err := s.contacts.AssignLotContacts(ctx, lotID, assignments)
				if err != nil {
					return "", err
				}
				data.LotContacts[lotID] = contacts
				return lotID, nil
			})
		if err != nil {
			return abort(ctx, j, data, err)
		}
	}

	return succeed(j, data)
}

// LotUpdate patches an existing lot. Contacts replace the current lot
// contacts when ReplaceContacts is set.
type LotUpdate struct {
	ID              string
	Patch           LotPatch
	Contacts        []ContactAssignment
	ReplaceContacts bool
}

// NewLot is a lot to create during a property update.
type NewLot struct {
	Lot      CreateLotInput
	Contacts []ContactAssignment
}

// UpdatePropertyInput describes a differential update of a property.
type UpdatePropertyInput struct {
	BuildingID      string
	Building        BuildingPatch
	Contacts        []ContactAssignment
	ReplaceContacts bool
	DeleteLots      []string
	UpdateLots      []LotUpdate
	CreateLots      []NewLot
}

// UpdateCompleteProperty applies a differential update: building, building
// contacts, then parallel lot deletes, updates and creates, then parallel lot
// contact replacement. Each phase starts only when the previous one fully
// succeeded. It never compensates; on failure the journal tells what was
// applied.
func (s *CompositeService) UpdateCompleteProperty(ctx context.Context, in UpdatePropertyInput) CompositeResult[PropertyData] {
	j := newJournal(s.stamps)
	data := PropertyData{LotContacts: make(map[string][]domain.Contact)}

	err := j.Run(ctx, op(OpUpdate, buildingService, "building", in.Building), nil,
		func(ctx context.Context) (string, error) {
			b, err := s.buildings.Update(ctx, in.BuildingID, in.Building)
			if err != nil {
				return in.BuildingID, err
			}
			data.Building = &b
			return b.ID, nil
		})
	if err != nil {
		return failed(j, data, err)
	}

	if in.ReplaceContacts {
		err = j.Run(ctx, op(OpUpdate, contactService, "building_contacts", in.Contacts), nil,
			func(ctx context.Context) (string, error) {
				contacts, err := s.contacts.ReplaceBuildingContacts(ctx, in.BuildingID, in.Contacts)
				data.BuildingContacts = contacts
				return in.BuildingID, err
			})
		if err != nil {
			return failed(j, data, err)
		}
	}

	var mu sync.Mutex

	err = parallel(ctx, len(in.DeleteLots), func(ctx context.Context, i int) error {
		id := in.DeleteLots[i]
		return j.Run(ctx, op(OpDelete, lotService, "lot", nil), nil,
			func(ctx context.Context) (string, error) {
				if err := s.lots.Delete(ctx, id); err != nil {
					return id, err
				}
				mu.Lock()
				data.DeletedLots = append(data.DeletedLots, id)
				mu.Unlock()
				return id, nil
			})
	})
	if err != nil {
		return failed(j, data, err)
	}

	updated := make([]domain.Lot, len(in.UpdateLots))
	err = parallel(ctx, len(in.UpdateLots), func(ctx context.Context, i int) error {
		u := in.UpdateLots[i]
		return j.Run(ctx, op(OpUpdate, lotService, "lot", u.Patch), nil,
			func(ctx context.Context) (string, error) {
				lot, err := s.lots.Update(ctx, u.ID, u.Patch)
				if err != nil {
					return u.ID, err
				}
				updated[i] = lot
				return lot.ID, nil
			})
	})
	data.Lots = appendSet(data.Lots, updated)
	if err != nil {
		return failed(j, data, err)
	}

	created := make([]domain.Lot, len(in.CreateLots))
	err = parallel(ctx, len(in.CreateLots), func(ctx context.Context, i int) error {
		lotIn := in.CreateLots[i].Lot
		lotIn.BuildingID = in.BuildingID
		return j.Run(ctx, op(OpCreate, lotService, "lot", lotIn), nil,
			func(ctx context.Context) (string, error) {
				lot, err := s.lots.Create(ctx, lotIn)
				if err != nil {
					return "", err
				}
				created[i] = lot
				return lot.ID, nil
			})
	})
	data.Lots = appendSet(data.Lots, created)
	if err != nil {
		return failed(j, data, err)
	}

	type replacement struct {
		lotID    string
		contacts []ContactAssignment
	}
	var replacements []replacement
	for _, u := range in.UpdateLots {
		if u.ReplaceContacts {
			replacements = append(replacements, replacement{u.ID, u.Contacts})
		}
	}
	for i, n := range in.CreateLots {
		if len(n.Contacts) > 0 {
			replacements = append(replacements, replacement{created[i].ID, n.Contacts})
		}
	}

	err = parallel(ctx, len(replacements), func(ctx context.Context, i int) error {
		r := replacements[i]
		return j.Run(ctx, op(OpUpdate, contactService, "lot_contacts", r.contacts), nil,
			func(ctx context.Context) (string, error) {
				contacts, err := s.contacts.ReplaceLotContacts(ctx, r.lotID, r.contacts)
				if err != nil {
					return r.lotID, err
				}
				mu.Lock()
				data.LotContacts[r.lotID] = contacts
				mu.Unlock()
				return r.lotID, nil
			})
	})
	if err != nil {
		return failed(j, data, err)
	}

	return succeed(j, data)
}

// parallel runs fn for every index and waits for all of them. It returns the
// error of the lowest failing index, or nil.
func parallel(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	var failures int
	var first error
	for _, err := range errs {
		if err != nil {
			failures++
			if first == nil {
				first = err
			}
		}
	}
	if failures > 1 {
		return fmt.Errorf("%d of %d steps failed, first: %w", failures, n, first)
	}
	return first
}

// appendSet appends the non-zero lots of src.
func appendSet(dst, src []domain.Lot) []domain.Lot {
	for _, lot := range src {
		if lot.ID != "" {
			dst = append(dst, lot)
		}
	}
	return dst
}
