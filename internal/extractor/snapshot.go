package extractor

import (
	"errors"

	"github.com/standardbeagle/clausewitz/internal/valtree"
)

// Resources is the sixteen named numeric fields of
// modules.standard_economy_module.resources (spec.md §4.3), grounded
// field-for-field on original_source/data-model/src/data.rs's
// Resources struct.
type Resources struct {
	Energy   float64
	Minerals float64
	Food     float64

	PhysicsResearch     float64
	SocietyResearch     float64
	EngineeringResearch float64

	Influence     float64
	Unity         float64
	ConsumerGoods float64

	Alloys float64

	VolatileMotes float64
	ExoticGases   float64
	RareCrystals  float64

	SrLivingMetal  float64
	SrZro          float64
	SrDarkMatter   float64
}

// Contribution is one (contributor-name, amount) pair in a budget
// resource-class's inverted ledger.
type Contribution struct {
	Contributor string
	Amount      float64
}

// BudgetSide maps a resource-class name (one of Resources' sixteen
// field names, or any other resource key the save file uses) to its
// ordered list of contributors, in input order, zero-amount entries
// already dropped.
type BudgetSide map[string][]Contribution

// Budget is the six-way current/last-month × income/expenses/balance
// breakdown, grounded on original_source/data-model/src/data.rs's
// Budget struct (there expressed as six HashMaps; spec.md §4.3 calls
// the two months "current_month"/"last_month" and the three ledgers
// "income"/"expenses"/"balance").
type Budget struct {
	CurrentIncome   BudgetSide
	CurrentExpenses BudgetSide
	CurrentBalance  BudgetSide

	LastMonthIncome   BudgetSide
	LastMonthExpenses BudgetSide
	LastMonthBalance  BudgetSide
}

// EmpireData is one country's extracted state (spec.md §4.3 / §6's
// Snapshot.empires element).
type EmpireData struct {
	Name      string
	Resources Resources
	Budget    Budget
}

// Snapshot is the full domain projection of one parsed save file
// (spec.md §6's Snapshot feed payload).
type Snapshot struct {
	CampaignName         string
	RequiredContentPacks []string
	Empires              []EmpireData
}

var resourceFields = []struct {
	key string
	set func(*Resources, float64)
}{
	{"energy", func(r *Resources, v float64) { r.Energy = v }},
	{"minerals", func(r *Resources, v float64) { r.Minerals = v }},
	{"food", func(r *Resources, v float64) { r.Food = v }},
	{"physics_research", func(r *Resources, v float64) { r.PhysicsResearch = v }},
	{"society_research", func(r *Resources, v float64) { r.SocietyResearch = v }},
	{"engineering_research", func(r *Resources, v float64) { r.EngineeringResearch = v }},
	{"influence", func(r *Resources, v float64) { r.Influence = v }},
	{"unity", func(r *Resources, v float64) { r.Unity = v }},
	{"consumer_goods", func(r *Resources, v float64) { r.ConsumerGoods = v }},
	{"alloys", func(r *Resources, v float64) { r.Alloys = v }},
	{"volatile_motes", func(r *Resources, v float64) { r.VolatileMotes = v }},
	{"exotic_gases", func(r *Resources, v float64) { r.ExoticGases = v }},
	{"rare_crystals", func(r *Resources, v float64) { r.RareCrystals = v }},
	{"sr_living_metal", func(r *Resources, v float64) { r.SrLivingMetal = v }},
	{"sr_zro", func(r *Resources, v float64) { r.SrZro = v }},
	{"sr_dark_matter", func(r *Resources, v float64) { r.SrDarkMatter = v }},
}

// extractResources reads the sixteen named fields off node, defaulting
// a missing field to 0 and erroring on a present-but-non-numeric one
// (spec.md §4.3).
func extractResources(node valtree.Val) (Resources, error) {
	entries, ok := dictEntries(node)
	if !ok {
		return Resources{}, typeErr("dict", node.Kind.String())
	}
	var r Resources
	for _, field := range resourceFields {
		val, found := lookupEntry(entries, field.key)
		if !found {
			continue
		}
		n, err := AsNumber(val)
		if err != nil {
			return Resources{}, err
		}
		field.set(&r, n)
	}
	return r, nil
}

// invertBudgetSide turns a Dict of contributor -> (Dict of
// resource-name -> amount) into a BudgetSide: resource-name -> ordered
// (contributor, amount) list, preserving the input order of
// contributors and dropping zero-value entries (spec.md §4.3).
func invertBudgetSide(node valtree.Val) (BudgetSide, error) {
	contributors, err := AsDict(node)
	if err != nil {
		return nil, err
	}
	result := make(BudgetSide)
	for _, contributor := range contributors {
		perResource, err := AsDict(contributor.Value)
		if err != nil {
			return nil, err
		}
		for _, r := range perResource {
			amount, err := AsNumber(r.Value)
			if err != nil {
				return nil, err
			}
			if amount == 0 {
				continue
			}
			resourceClass := string(r.Key)
			result[resourceClass] = append(result[resourceClass], Contribution{
				Contributor: string(contributor.Key),
				Amount:      amount,
			})
		}
	}
	return result, nil
}

// invertLedger finds subKey (one of "income", "expenses", "balance")
// within a current_month/last_month dict's entries and inverts it. A
// missing ledger is not an error: it yields an empty BudgetSide, the
// same "absence defaults to empty" stance §4.3 takes for resources.
func invertLedger(monthEntries []valtree.Entry, subKey string) (BudgetSide, error) {
	val, found := lookupEntry(monthEntries, subKey)
	if !found {
		return BudgetSide{}, nil
	}
	return invertBudgetSide(val)
}

func empireResources(country valtree.Val) (Resources, error) {
	node, err := Get(country, Path{K("modules"), K("standard_economy_module"), K("resources")})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Resources{}, nil
		}
		return Resources{}, err
	}
	return extractResources(node)
}

func empireBudgetMonth(country valtree.Val, monthKey string) (income, expenses, balance BudgetSide, err error) {
	monthVal, err := Get(country, Path{K("budget"), K(monthKey)})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return BudgetSide{}, BudgetSide{}, BudgetSide{}, nil
		}
		return nil, nil, nil, err
	}
	entries, err := AsDict(monthVal)
	if err != nil {
		return nil, nil, nil, err
	}
	income, err = invertLedger(entries, "income")
	if err != nil {
		return nil, nil, nil, err
	}
	expenses, err = invertLedger(entries, "expenses")
	if err != nil {
		return nil, nil, nil, err
	}
	balance, err = invertLedger(entries, "balance")
	if err != nil {
		return nil, nil, nil, err
	}
	return income, expenses, balance, nil
}

func empireBudget(country valtree.Val) (Budget, error) {
	var b Budget
	var err error
	b.CurrentIncome, b.CurrentExpenses, b.CurrentBalance, err = empireBudgetMonth(country, "current_month")
	if err != nil {
		return Budget{}, err
	}
	b.LastMonthIncome, b.LastMonthExpenses, b.LastMonthBalance, err = empireBudgetMonth(country, "last_month")
	if err != nil {
		return Budget{}, err
	}
	return b, nil
}

// Extract walks root (the Dict produced by valtree.Parse over a save
// file's concatenated meta+gamestate text, or meta and gamestate
// parsed and merged by the caller) and produces the domain Snapshot
// (spec.md §4.3 and §6). Countries missing the
// modules.standard_economy_module subtree are silently omitted, per
// §4.3's rule that this represents non-empire entities.
func Extract(root valtree.Val) (Snapshot, error) {
	name, err := getString(root, Path{K("meta"), K("name")})
	if err != nil {
		return Snapshot{}, err
	}

	packsVal, err := Get(root, Path{K("meta"), K("required_dlcs")})
	if err != nil {
		return Snapshot{}, err
	}
	packs, err := stringSet(packsVal)
	if err != nil {
		return Snapshot{}, err
	}

	countriesVal, err := Get(root, Path{K("gamestate"), K("country")})
	if err != nil {
		return Snapshot{}, err
	}
	// An empty country collection is indistinguishable from an empty
	// Set at the grammar level (disambiguation never produces an empty
	// Array), so accept either shape here, mirroring required_dlcs'
	// dual-shape tolerance.
	countries, err := asArrayLike(countriesVal)
	if err != nil {
		return Snapshot{}, err
	}

	var empires []EmpireData
	for _, country := range countries {
		_, err := Get(country, Path{K("modules"), K("standard_economy_module")})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return Snapshot{}, err
		}
		empireName, err := getString(country, Path{K("name")})
		if err != nil {
			return Snapshot{}, err
		}
		resources, err := empireResources(country)
		if err != nil {
			return Snapshot{}, err
		}
		budget, err := empireBudget(country)
		if err != nil {
			return Snapshot{}, err
		}
		empires = append(empires, EmpireData{Name: empireName, Resources: resources, Budget: budget})
	}

	return Snapshot{CampaignName: name, RequiredContentPacks: packs, Empires: empires}, nil
}
