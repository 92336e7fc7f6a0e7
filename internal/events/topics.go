package events

// Topic constants for domain events emitted by the terminal.
const (
	TopicSaleCompleted  = "sale.completed"
	TopicSaleFailed     = "sale.failed"
	TopicCartCleared    = "cart.cleared"
	TopicCatalogRefresh = "catalog.refreshed"
)

// DefaultTopics returns the canonical list of topics subscribers may attach to.
func DefaultTopics() []string {
	return []string{
		TopicSaleCompleted,
		TopicSaleFailed,
		TopicCartCleared,
		TopicCatalogRefresh,
	}
}
