package mqtt

// Topics used by the miio agent bridge. They are fixed and case-sensitive;
// remote clients depend on these exact strings.
const (
	// TopicCommand carries commands from remote clients to the agent.
	TopicCommand = "miio/command"

	// TopicCommandAck carries agent responses whose id matches the last
	// observed command.
	TopicCommandAck = "miio/command_ack"

	// TopicReport carries unsolicited agent events and relayed log reports.
	TopicReport = "openmiio/report"
)

// QoS levels.
const (
	// QoSAtMostOnce is fire-and-forget delivery; the bridge uses it for
	// every subscription and publish.
	QoSAtMostOnce byte = 0
)
