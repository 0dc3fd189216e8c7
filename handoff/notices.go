package handoff

// Notices holds the system messages appended to the transcript when the
// state changes.
type Notices struct {
	Handoff    string `json:"handoff,omitempty" yaml:"handoff,omitempty"`
	Escalation string `json:"escalation,omitempty" yaml:"escalation,omitempty"`
	Return     string `json:"return,omitempty" yaml:"return,omitempty"`
}

// DefaultNotices returns the Portuguese notices used in production.
func DefaultNotices() Notices {
	return Notices{
		Handoff: "Pedido de atendimento humano recebido. " +
			"Um profissional vai continuar a conversa com você em instantes.",
		Escalation: "Percebemos que você pode estar passando por um momento muito difícil. " +
			"Um profissional foi chamado e vai falar com você em instantes. " +
			"Se estiver em perigo agora, ligue para o CVV no 188 (24 horas, gratuito) " +
			"ou para o SAMU no 192.",
		Return: "O atendimento com o profissional foi encerrado. " +
			"Seguimos conversando por aqui sempre que você precisar.",
	}
}

// Merge applies non-empty values from source into n.
func (n *Notices) Merge(source *Notices) {
	if source.Handoff != "" {
		n.Handoff = source.Handoff
	}
	if source.Escalation != "" {
		n.Escalation = source.Escalation
	}
	if source.Return != "" {
		n.Return = source.Return
	}
}

// For returns the notice text for a state-changing trigger.
func (n *Notices) For(t Trigger) string {
	switch t {
	case TriggerRequestHuman:
		return n.Handoff
	case TriggerAutoEscalate:
		return n.Escalation
	case TriggerClose:
		return n.Return
	}
	return ""
}
