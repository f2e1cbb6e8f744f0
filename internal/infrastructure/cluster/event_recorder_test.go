package cluster

type EventRecorder struct {
	events []ApplyEventType
	names  []string
}

func (e *EventRecorder) Handle(eventType ApplyEventType, name string) {
	e.events = append(e.events, eventType)
	e.names = append(e.names, name)
}

func (e *EventRecorder) Count(eventType ApplyEventType) int {
	result := 0
	for _, event := range e.events {
		if event == eventType {
			result += 1
		}
	}
	return result
}

// Sequence returns the recorded event types in order, with consecutive polls collapsed.
func (e *EventRecorder) Sequence() []ApplyEventType {
	var result []ApplyEventType
	for _, event := range e.events {
		if event == ClusterPolled && len(result) > 0 && result[len(result)-1] == ClusterPolled {
			continue
		}
		result = append(result, event)
	}
	return result
}

func (e *EventRecorder) Names(eventType ApplyEventType) []string {
	var result []string
	for i, event := range e.events {
		if event == eventType {
			result = append(result, e.names[i])
		}
	}
	return result
}
