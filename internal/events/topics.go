package events

// Subject naming: <prefix>.<domain>.<name>
// Prefix is configured per deployment (e.g. "fog").

const (
	DomainSensor = "sensor"
	DomainDevice = "device"
	DomainAlert  = "alert"
	DomainPlan   = "plan"
)

const (
	SensorObserved = DomainSensor + ".observed"

	DeviceStateUpdated = DomainDevice + ".state_updated"

	AlertRaised = DomainAlert + ".raised"

	PlanGenerated = DomainPlan + ".generated"
)
