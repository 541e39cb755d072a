package example

type Account string

const (
	AccountComercial Account = "COMERCIAL"
	AccountSuporte   Account = "SUPORTE"
)

type ConversationStatus string

const (
	StatusPending ConversationStatus = "Pendente"
	StatusDone    ConversationStatus = "Concluído"
)

type ConversationRecord struct {
	Account  Account
	Status   ConversationStatus
	LeadName string
}

func bad() {
	r := &ConversationRecord{}
	r.Status = "Concluido"  // want "enum field Status assigned string literal"
	r.Account = "comercial" // want "enum field Account assigned string literal"

	_ = ConversationRecord{Status: "Pendente"} // want "enum field Status set to string literal"
}

func good() {
	r := &ConversationRecord{}
	r.Status = StatusDone // OK: using constant
	r.Account = AccountSuporte
	r.LeadName = "Ana" // OK: not an enum

	_ = ConversationRecord{Account: AccountComercial, Status: StatusPending}
}

func alsoGood() {
	// OK: Variable, not literal
	status := StatusPending
	r := &ConversationRecord{Status: status}
	_ = r
}
