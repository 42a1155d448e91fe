package status

import "go.opentelemetry.io/otel/attribute"

func serviceAttr(serviceType string) attribute.KeyValue {
	return attribute.String("service_type", serviceType)
}
