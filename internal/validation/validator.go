package validation

import (
	"fmt"
	"math"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/triage"
)

// New returns a validator with the desk's custom tags and struct-level rules.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// registration only fails for empty tags or nil funcs
	_ = v.RegisterValidation("order_filter", func(fl validatorv10.FieldLevel) bool {
		_, err := triage.ParseFilter(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		return orders.ParseStatus(fl.Field().String()) != orders.StatusUnknown
	})

	v.RegisterStructValidation(checkoutStructValidation, CheckoutRequest{})
	v.RegisterStructValidation(statusPatchStructValidation, StatusPatch{})

	return v
}

// checkoutStructValidation verifies Amount equals the sum of the lines, in cents.
func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CheckoutRequest)

	var sum float64
	for _, it := range req.Items {
		sum += float64(it.Quantity) * it.UnitPrice
	}

	sumCents := int(math.Round(sum * 100))
	amountCents := int(math.Round(req.Amount * 100))
	if sumCents != amountCents {
		sl.ReportError(req.Amount, "amount", "Amount", "amount_match_items", fmt.Sprintf("items sum %.2f != amount %.2f", sum, req.Amount))
	}
}

func statusPatchStructValidation(sl validatorv10.StructLevel) {
	p := sl.Current().Interface().(StatusPatch)
	from, to := orders.ParseStatus(p.From), orders.ParseStatus(p.To)
	if from == orders.StatusUnknown || to == orders.StatusUnknown {
		return
	}
	if !from.CanTransitionTo(to) {
		sl.ReportError(p.To, "to", "To", "status_transition", string(from))
	}
}
