package orders

import (
	"time"

	"orderflow/internal/saga"
	"orderflow/internal/store"
)

// WorkflowName identifies the order saga definition.
const WorkflowName = "order-saga"

// Workflow builds the order saga graph:
//
//	validate-order
//	  FAILED -> reject
//	  else   -> process-order (comp cancel-order)
//	process-order -> charge-payment (comp cancel-order)
//	charge-payment -> verify-payment (comp cancel-order)
//	verify-payment
//	  OVERPAID -> refund-payment -> done
//	  else     -> done
//
// Validate carries no compensation: it has no side effects, so rejecting
// early commits nothing. An UNDERPAID verification terminates successfully
// with the shortfall on the bill; collecting the remainder is left to an
// external reconciliation process.
func Workflow() (*saga.Definition, error) {
	return saga.NewDefinition(WorkflowName, StepValidate,
		saga.Step{
			Name: StepValidate,
			Edges: []saga.Edge{
				{When: validationFailed, Reject: "validation failed"},
				{To: StepProcess},
			},
		},
		saga.Step{
			Name:       StepProcess,
			Compensate: StepCancel,
			Edges:      []saga.Edge{{To: StepCharge}},
		},
		saga.Step{
			Name:       StepCharge,
			Compensate: StepCancel,
			Edges:      []saga.Edge{{To: StepVerify}},
		},
		saga.Step{
			Name:       StepVerify,
			Compensate: StepCancel,
			Edges: []saga.Edge{
				{When: overpaid, To: StepRefund},
				{Done: true},
			},
		},
		saga.Step{
			Name:  StepRefund,
			Edges: []saga.Edge{{Done: true}},
		},
		saga.Step{
			Name:  StepCancel,
			Edges: []saga.Edge{{Done: true}},
		},
	)
}

func validationFailed(c saga.Context) bool {
	result, ok := c[StepValidate].(ValidationResult)
	return ok && result.Status == ValidationFailed
}

func overpaid(c saga.Context) bool {
	bill, ok := c[StepVerify].(Bill)
	return ok && bill.Status == BillOverpaid
}

// NewRegistry binds the six order step executors to their workflow names.
func NewRegistry(st store.Store, gateway PaymentGateway, now func() time.Time) (*saga.Registry, error) {
	reg := saga.NewRegistry()
	steps := map[string]saga.Executor{
		StepValidate: ValidateExecutor{},
		StepProcess:  ProcessExecutor{Store: st, Now: now},
		StepCharge:   ChargeExecutor{Store: st, Gateway: gateway},
		StepVerify:   VerifyExecutor{Store: st, Now: now},
		StepRefund:   RefundExecutor{Store: st, Gateway: gateway},
		StepCancel:   CancelExecutor{Store: st},
	}
	for name, exec := range steps {
		if err := reg.Register(name, exec); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
