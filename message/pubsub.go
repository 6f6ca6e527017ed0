package message

// Publish is sent by a publisher to a broker to publish an event to a topic.
type Publish struct {
	RequestID ID
	Options   Dict
	Topic     URI
	Args      List
	Kwargs    Dict
}

func NewPublish(requestID ID, options Dict, topic URI, args List, kwargs Dict) Publish {
	return Publish{
		RequestID: requestID,
		Options:   dictOrEmpty(options),
		Topic:     topic,
		Args:      listOrNil(args),
		Kwargs:    dictOrNil(kwargs),
	}
}

func (Publish) Type() Type { return PUBLISH }
func (Publish) message()   {}

func (m Publish) Marshal() []any {
	wire := []any{int(PUBLISH), uint64(m.RequestID), dictOrEmpty(m.Options), string(m.Topic)}
	return appendPayload(wire, m.Args, m.Kwargs)
}

// UnmarshalPublish decodes [PUBLISH, Request|id, Options|dict, Topic|uri,
// Arguments|list?, ArgumentsKw|dict?].
func UnmarshalPublish(wire []any) (Publish, error) {
	if err := checkFrame(wire, PUBLISH, 4, 5, 6); err != nil {
		return Publish{}, err
	}
	requestID, err := readID(wire, 1, "request id")
	if err != nil {
		return Publish{}, err
	}
	options, err := readDict(wire, 2, "options")
	if err != nil {
		return Publish{}, err
	}
	topic, err := readURI(wire, 3, "topic")
	if err != nil {
		return Publish{}, err
	}
	args, kwargs, err := readPayload(wire, 4)
	if err != nil {
		return Publish{}, err
	}
	return NewPublish(requestID, options, topic, args, kwargs), nil
}

// Published acknowledges a publication requested with {"acknowledge": true}.
type Published struct {
	RequestID     ID
	PublicationID ID
}

func NewPublished(requestID, publicationID ID) Published {
	return Published{RequestID: requestID, PublicationID: publicationID}
}

func (Published) Type() Type { return PUBLISHED }
func (Published) message()   {}

func (m Published) Marshal() []any {
	return []any{int(PUBLISHED), uint64(m.RequestID), uint64(m.PublicationID)}
}

// UnmarshalPublished decodes [PUBLISHED, PUBLISH.Request|id, Publication|id].
func UnmarshalPublished(wire []any) (Published, error) {
	requestID, publicationID, err := readIDPair(wire, PUBLISHED, "publication id")
	if err != nil {
		return Published{}, err
	}
	return NewPublished(requestID, publicationID), nil
}

// Subscribe announces a subscriber's interest in a topic.
type Subscribe struct {
	RequestID ID
	Options   Dict
	Topic     URI
}

func NewSubscribe(requestID ID, options Dict, topic URI) Subscribe {
	return Subscribe{RequestID: requestID, Options: dictOrEmpty(options), Topic: topic}
}

func (Subscribe) Type() Type { return SUBSCRIBE }
func (Subscribe) message()   {}

func (m Subscribe) Marshal() []any {
	return []any{int(SUBSCRIBE), uint64(m.RequestID), dictOrEmpty(m.Options), string(m.Topic)}
}

// UnmarshalSubscribe decodes [SUBSCRIBE, Request|id, Options|dict, Topic|uri].
func UnmarshalSubscribe(wire []any) (Subscribe, error) {
	requestID, options, topic, err := readRequest(wire, SUBSCRIBE, "topic")
	if err != nil {
		return Subscribe{}, err
	}
	return NewSubscribe(requestID, options, topic), nil
}

// Subscribed confirms a subscription and carries the broker's subscription ID.
type Subscribed struct {
	RequestID      ID
	SubscriptionID ID
}

func NewSubscribed(requestID, subscriptionID ID) Subscribed {
	return Subscribed{RequestID: requestID, SubscriptionID: subscriptionID}
}

func (Subscribed) Type() Type { return SUBSCRIBED }
func (Subscribed) message()   {}

func (m Subscribed) Marshal() []any {
	return []any{int(SUBSCRIBED), uint64(m.RequestID), uint64(m.SubscriptionID)}
}

// UnmarshalSubscribed decodes [SUBSCRIBED, SUBSCRIBE.Request|id, Subscription|id].
func UnmarshalSubscribed(wire []any) (Subscribed, error) {
	requestID, subscriptionID, err := readIDPair(wire, SUBSCRIBED, "subscription id")
	if err != nil {
		return Subscribed{}, err
	}
	return NewSubscribed(requestID, subscriptionID), nil
}

// Unsubscribe ends a subscription.
type Unsubscribe struct {
	RequestID      ID
	SubscriptionID ID
}

func NewUnsubscribe(requestID, subscriptionID ID) Unsubscribe {
	return Unsubscribe{RequestID: requestID, SubscriptionID: subscriptionID}
}

func (Unsubscribe) Type() Type { return UNSUBSCRIBE }
func (Unsubscribe) message()   {}

func (m Unsubscribe) Marshal() []any {
	return []any{int(UNSUBSCRIBE), uint64(m.RequestID), uint64(m.SubscriptionID)}
}

// UnmarshalUnsubscribe decodes [UNSUBSCRIBE, Request|id, SUBSCRIBED.Subscription|id].
func UnmarshalUnsubscribe(wire []any) (Unsubscribe, error) {
	requestID, subscriptionID, err := readIDPair(wire, UNSUBSCRIBE, "subscription id")
	if err != nil {
		return Unsubscribe{}, err
	}
	return NewUnsubscribe(requestID, subscriptionID), nil
}

// Unsubscribed confirms an unsubscription.
type Unsubscribed struct {
	RequestID ID
}

func NewUnsubscribed(requestID ID) Unsubscribed {
	return Unsubscribed{RequestID: requestID}
}

func (Unsubscribed) Type() Type { return UNSUBSCRIBED }
func (Unsubscribed) message()   {}

func (m Unsubscribed) Marshal() []any {
	return []any{int(UNSUBSCRIBED), uint64(m.RequestID)}
}

// UnmarshalUnsubscribed decodes [UNSUBSCRIBED, UNSUBSCRIBE.Request|id].
func UnmarshalUnsubscribed(wire []any) (Unsubscribed, error) {
	requestID, err := readAck(wire, UNSUBSCRIBED)
	if err != nil {
		return Unsubscribed{}, err
	}
	return NewUnsubscribed(requestID), nil
}

// Event delivers a publication to a subscriber.
type Event struct {
	SubscriptionID ID
	PublicationID  ID
	Details        Dict
	Args           List
	Kwargs         Dict
}

func NewEvent(subscriptionID, publicationID ID, details Dict, args List, kwargs Dict) Event {
	return Event{
		SubscriptionID: subscriptionID,
		PublicationID:  publicationID,
		Details:        dictOrEmpty(details),
		Args:           listOrNil(args),
		Kwargs:         dictOrNil(kwargs),
	}
}

func (Event) Type() Type { return EVENT }
func (Event) message()   {}

func (m Event) Marshal() []any {
	wire := []any{int(EVENT), uint64(m.SubscriptionID), uint64(m.PublicationID), dictOrEmpty(m.Details)}
	return appendPayload(wire, m.Args, m.Kwargs)
}

// UnmarshalEvent decodes [EVENT, SUBSCRIBED.Subscription|id,
// PUBLISHED.Publication|id, Details|dict, Arguments|list?, ArgumentsKw|dict?].
func UnmarshalEvent(wire []any) (Event, error) {
	if err := checkFrame(wire, EVENT, 4, 5, 6); err != nil {
		return Event{}, err
	}
	subscriptionID, err := readID(wire, 1, "subscription id")
	if err != nil {
		return Event{}, err
	}
	publicationID, err := readID(wire, 2, "publication id")
	if err != nil {
		return Event{}, err
	}
	details, err := readDict(wire, 3, "details")
	if err != nil {
		return Event{}, err
	}
	args, kwargs, err := readPayload(wire, 4)
	if err != nil {
		return Event{}, err
	}
	return NewEvent(subscriptionID, publicationID, details, args, kwargs), nil
}

// readIDPair decodes the fixed [t, Request|id, X|id] shape shared by
// PUBLISHED, SUBSCRIBED, UNSUBSCRIBE, REGISTERED and UNREGISTER.
func readIDPair(wire []any, t Type, second string) (ID, ID, error) {
	if err := checkFrame(wire, t, 3); err != nil {
		return 0, 0, err
	}
	requestID, err := readID(wire, 1, "request id")
	if err != nil {
		return 0, 0, err
	}
	id, err := readID(wire, 2, second)
	if err != nil {
		return 0, 0, err
	}
	return requestID, id, nil
}

// readAck decodes the fixed [t, Request|id] shape of UNSUBSCRIBED and
// UNREGISTERED.
func readAck(wire []any, t Type) (ID, error) {
	if err := checkFrame(wire, t, 2); err != nil {
		return 0, err
	}
	return readID(wire, 1, "request id")
}

// readRequest decodes the fixed [t, Request|id, Options|dict, X|uri] shape of
// SUBSCRIBE and REGISTER.
func readRequest(wire []any, t Type, uriName string) (ID, Dict, URI, error) {
	if err := checkFrame(wire, t, 4); err != nil {
		return 0, nil, "", err
	}
	requestID, err := readID(wire, 1, "request id")
	if err != nil {
		return 0, nil, "", err
	}
	options, err := readDict(wire, 2, "options")
	if err != nil {
		return 0, nil, "", err
	}
	uri, err := readURI(wire, 3, uriName)
	if err != nil {
		return 0, nil, "", err
	}
	return requestID, options, uri, nil
}
