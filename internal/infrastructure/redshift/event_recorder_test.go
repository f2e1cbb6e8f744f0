package redshift

import log "github.com/sirupsen/logrus"

type EventRecorder struct {
	events []ApplyEventType
	names  []string
}

func (e *EventRecorder) Handle(eventType ApplyEventType, name string) {
	log.Debugf("Event %s:%s occurred", eventType.ToString(), name)
	e.events = append(e.events, eventType)
	e.names = append(e.names, name)
}

func (e *EventRecorder) CountAll() int {
	return len(e.events)
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

// Names returns the names of the events of the given type in the order they occurred.
func (e *EventRecorder) Names(eventType ApplyEventType) []string {
	var result []string
	for i, event := range e.events {
		if event == eventType {
			result = append(result, e.names[i])
		}
	}
	return result
}
