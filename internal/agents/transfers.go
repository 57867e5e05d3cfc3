package agents

import (
	"context"
	"fmt"
	"strings"

	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/apperr"
)

const transferPrefix = "transfer_to_"

type transferInput struct {
	Reason string `json:"reason,omitempty" jsonschema:"short reason for the transfer"`
}

type productTransferInput struct {
	CustomerID   string `json:"customer_id,omitempty" jsonschema:"identifier of the identified customer"`
	CustomerInfo string `json:"customer_info,omitempty" jsonschema:"short summary of the customer for the next agent"`
}

type transferResult struct {
	Transfer    bool   `json:"transfer"`
	Destination string `json:"destination"`
	CustomerID  string `json:"customer_id,omitempty"`
	Message     string `json:"message"`
}

// TransferOperation returns the name of the operation that transfers to destination.
func TransferOperation(destination handoff.HandlerName) string {
	return transferPrefix + string(destination)
}

// TransferDestination reports whether operation is a transfer and to whom.
func TransferDestination(operation string) (handoff.HandlerName, bool) {
	if !strings.HasPrefix(operation, transferPrefix) {
		return "", false
	}
	return handoff.HandlerName(strings.TrimPrefix(operation, transferPrefix)), true
}

func (o *Operations) registerTransfers(reg *toolkit.Registry) error {
	for _, edge := range o.graph.Edges() {
		node, _ := o.graph.Node(edge.Destination)
		name := TransferOperation(edge.Destination)
		description := fmt.Sprintf("Transfère l'appel vers %s. %s", node.DisplayName, node.Description)

		var err error
		if edge.Destination == handoff.ProductConsultation {
			err = toolkit.Register(reg, edge.Source, name, description+" Le client doit être identifié.", o.transferToProductConsultation)
		} else {
			destination := edge.Destination
			err = toolkit.Register(reg, edge.Source, name, description, func(ctx context.Context, call *toolkit.Call, in transferInput) (toolkit.Result, error) {
				return transferTo(destination, in.Reason, ""), nil
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Operations) transferToProductConsultation(ctx context.Context, call *toolkit.Call, in productTransferInput) (toolkit.Result, error) {
	session := call.Session
	if !session.Identified() {
		return toolkit.Result{}, apperr.Validation("le client doit être identifié ou créé avant le transfert")
	}
	if in.CustomerID != "" && in.CustomerID != session.CustomerID {
		return toolkit.Result{}, apperr.Validation("customer_id ne correspond pas au client identifié").WithDetails(map[string]string{
			"identified": session.CustomerID,
			"requested":  in.CustomerID,
		})
	}

	reason := "Client authentifié, prêt pour la consultation produits"
	if info := strings.TrimSpace(in.CustomerInfo); info != "" {
		reason = reason + ": " + info
	}
	return transferTo(handoff.ProductConsultation, reason, session.CustomerID), nil
}

func transferTo(destination handoff.HandlerName, reason, customerID string) toolkit.Result {
	return toolkit.Result{
		Data: transferResult{
			Transfer:    true,
			Destination: string(destination),
			CustomerID:  customerID,
			Message:     "Transfert en cours.",
		},
		Transfer: &toolkit.Transfer{Destination: destination, Reason: reason},
	}
}
