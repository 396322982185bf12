package basket

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/catalog"
	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/geo"
)

const (
	// DefaultMaxPasses — предел внешних проходов улучшения.
	DefaultMaxPasses = 50
	// DefaultMaxEvaluations — абсолютный предел числа оценённых перемещений за один запуск.
	DefaultMaxEvaluations = 20000
	// DefaultEvaluationsPerItem — бюджет оценок на одну позицию корзины.
	DefaultEvaluationsPerItem = 1000
)

// Problem содержит входные данные одного запуска оптимизатора.
type Problem struct {
	Destination domain.Coordinate
	Items       []domain.LineItem
	// Variants — неизменяемый пул кандидатов по названию товара, собранный до запуска.
	Variants   map[string][]domain.Product
	AllowSwaps bool
}

// Result содержит лучший найденный план и разбиение, которое его дало.
type Result struct {
	Plan        domain.Plan
	Assignment  *Assignment
	Passes      int
	Moves       int
	Evaluations int
	// Truncated выставляется, если поиск остановлен по лимиту оценок или по контексту.
	Truncated bool
}

// Optimizer — жадный локальный поиск: переносит по одной позиции в другой магазин,
// пока это строго улучшает план (сначала по стоимости, затем по ETA).
type Optimizer struct {
	tariff             geo.Tariff
	maxPasses          int
	maxEvaluations     int
	evaluationsPerItem int
	onAccept           func(domain.Plan)
	logger             *log.Entry
}

// OptimizerOption настраивает Optimizer.
type OptimizerOption func(*Optimizer)

// WithMaxPasses задаёт предел внешних проходов.
func WithMaxPasses(n int) OptimizerOption {
	return func(o *Optimizer) {
		if n > 0 {
			o.maxPasses = n
		}
	}
}

// WithMaxEvaluations задаёт предел оценённых перемещений.
func WithMaxEvaluations(n int) OptimizerOption {
	return func(o *Optimizer) {
		if n > 0 {
			o.maxEvaluations = n
		}
	}
}

// WithEvaluationsPerItem задаёт бюджет оценок на позицию: лимит запуска равен
// n × число позиций, но не больше WithMaxEvaluations.
func WithEvaluationsPerItem(n int) OptimizerOption {
	return func(o *Optimizer) {
		if n > 0 {
			o.evaluationsPerItem = n
		}
	}
}

// WithAcceptHook вызывается для каждого принятого плана.
func WithAcceptHook(fn func(domain.Plan)) OptimizerOption {
	return func(o *Optimizer) {
		o.onAccept = fn
	}
}

// WithOptimizerLogger задаёт логгер.
func WithOptimizerLogger(logger *log.Entry) OptimizerOption {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOptimizer создаёт оптимизатор с тарифом доставки.
func NewOptimizer(tariff geo.Tariff, opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{
		tariff:             tariff,
		maxPasses:          DefaultMaxPasses,
		maxEvaluations:     DefaultMaxEvaluations,
		evaluationsPerItem: DefaultEvaluationsPerItem,
		logger:             log.WithField("component", "basket-optimizer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize строит начальное разбиение по магазинам, оценивает его и, если замены разрешены,
// улучшает перемещениями. Отклонённая попытка не меняет текущее лучшее разбиение:
// каждая попытка делается на копии, принятая копия целиком заменяет лучшее.
func (o *Optimizer) Optimize(ctx context.Context, p Problem) (Result, error) {
	best := NewAssignment(p.Items)
	if best.Empty() {
		return Result{}, domain.ErrNoApprovedMarts
	}

	cost := NewCostModel(o.tariff, p.Destination)
	res := Result{Plan: cost.Score(best), Assignment: best}
	if !p.AllowSwaps {
		return res, nil
	}
	limit := o.evaluationLimit(len(p.Items))

passes:
	for res.Passes < o.maxPasses {
		res.Passes++
		improved := false

		for _, src := range res.Assignment.MartIDs() {
			for _, item := range res.Assignment.Bucket(src) {
				for _, candidate := range relocationCandidates(p.Variants[item.Name], src) {
					if !res.Assignment.Contains(src, item.Seq) {
						break
					}
					if res.Evaluations >= limit || ctx.Err() != nil {
						res.Truncated = true
						break passes
					}

					trial := res.Assignment.Clone()
					trial.Relocate(item.Seq, src, candidate)
					plan := cost.Score(trial)
					res.Evaluations++

					if !res.Plan.ImprovedBy(plan) {
						continue
					}
					res.Plan = plan
					res.Assignment = trial
					res.Moves++
					improved = true
					if o.onAccept != nil {
						o.onAccept(plan)
					}
				}
			}
		}

		if !improved {
			break
		}
	}

	if res.Truncated {
		o.logger.WithFields(log.Fields{
			"passes":      res.Passes,
			"evaluations": res.Evaluations,
			"moves":       res.Moves,
			"limit":       limit,
		}).Warn("optimizer stopped before convergence")
	}
	return res, nil
}

// evaluationLimit растёт линейно с числом позиций: много магазинов с одним и тем же
// товаром не должны раздувать поиск для маленькой корзины.
func (o *Optimizer) evaluationLimit(items int) int {
	if items <= 0 {
		return 0
	}
	if o.evaluationsPerItem > o.maxEvaluations/items {
		return o.maxEvaluations
	}
	return o.evaluationsPerItem * items
}

// relocationCandidates возвращает покупаемые варианты из других магазинов в порядке выбора.
func relocationCandidates(variants []domain.Product, src int64) []domain.Product {
	out := make([]domain.Product, 0, len(variants))
	for _, v := range variants {
		if v.Mart.ID == src || !v.Purchasable() {
			continue
		}
		out = append(out, v)
	}
	catalog.SortVariants(out)
	return out
}
