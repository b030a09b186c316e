package constant

const (
	BrokerQueueName  = "broker_queue"
	BrokerQueueGroup = "broker_group"

	BrokerStreamName              = "broker"
	BrokerStreamSubjectAll        = "broker.*"
	BrokerStreamSubjectPlaceOrder = "broker.place_order"

	MarketFeedChannel = "v4_markets"
)
