package http

import (
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// transactionRequest POST /clientes/:id/transacoes 的 body
type transactionRequest struct {
	Valor     int64  `json:"valor"`
	Tipo      string `json:"tipo"`
	Descricao string `json:"descricao"`
}

func (r transactionRequest) toDomain() domain.TransactionRequest {
	return domain.TransactionRequest{
		Value:       r.Valor,
		Kind:        domain.TransactionKind(r.Tipo),
		Description: r.Descricao,
	}
}

// transactionResponse 交易成功的回應
type transactionResponse struct {
	ID     int64 `json:"id"`
	Limite int64 `json:"limite"`
	Saldo  int64 `json:"saldo"`
}

func toTransactionResponse(v domain.ClientView) transactionResponse {
	return transactionResponse{
		ID:     v.ID,
		Limite: v.Limit,
		Saldo:  v.Balance,
	}
}

type saldoResponse struct {
	Total       int64     `json:"total"`
	Limite      int64     `json:"limite"`
	DataExtrato time.Time `json:"data_extrato"`
}

type ultimaTransacao struct {
	Valor       int64     `json:"valor"`
	Tipo        string    `json:"tipo"`
	Descricao   string    `json:"descricao"`
	RealizadaEm time.Time `json:"realizada_em"`
}

// extratoResponse 對帳單回應，ultimas_transacoes 永遠是陣列
type extratoResponse struct {
	Saldo             saldoResponse     `json:"saldo"`
	UltimasTransacoes []ultimaTransacao `json:"ultimas_transacoes"`
}

func toExtratoResponse(v domain.ExtractView) extratoResponse {
	history := make([]ultimaTransacao, 0, len(v.RecentHistory))
	for _, rec := range v.RecentHistory {
		history = append(history, ultimaTransacao{
			Valor:       rec.Value,
			Tipo:        string(rec.Kind),
			Descricao:   rec.Description,
			RealizadaEm: rec.OccurredAt.UTC(),
		})
	}
	return extratoResponse{
		Saldo: saldoResponse{
			Total:       v.Balance.Total,
			Limite:      v.Balance.Limit,
			DataExtrato: v.Balance.AsOf.UTC(),
		},
		UltimasTransacoes: history,
	}
}
