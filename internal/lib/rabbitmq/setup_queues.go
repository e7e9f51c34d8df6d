package rabbitmq

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Routing keys on the notifications exchange.
const (
	RoutingKeyPasswordReset = "password-reset"
	RoutingKeyPaymentFailed = "payment-failed"
)

func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.password-reset", RoutingKey: RoutingKeyPasswordReset},
		{QueueName: "notification.payment-failed", RoutingKey: RoutingKeyPaymentFailed},
	}
}
