package service

import (
	"fmt"

	"github.com/qs3c/dieta_server/config"
)

// Plan 价格对应的套餐
type Plan struct {
	PriceID string
	Type    string
	Credits int
}

// PlanTable 静态且穷尽的价格映射，未知价格不做猜测
type PlanTable struct {
	byPrice map[string]Plan
}

func NewPlanTable(plans []config.PlanConfig) *PlanTable {
	t := &PlanTable{byPrice: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		credits := p.Credits
		if credits <= 0 {
			credits = 1
		}
		t.byPrice[p.PriceID] = Plan{PriceID: p.PriceID, Type: p.Plan, Credits: credits}
	}
	return t
}

func (t *PlanTable) Lookup(priceID string) (Plan, error) {
	p, ok := t.byPrice[priceID]
	if !ok {
		return Plan{}, fmt.Errorf("%w: price %q", ErrUnrecognizedPlan, priceID)
	}
	return p, nil
}
