package mqtt

import "fmt"

// Subscribe routes messages matching topic (which may contain + or #) to
// handler. The route survives reconnects until Unsubscribe.
//
//	err := client.Subscribe(mqtt.Topics{}.AccessReport(), 1, srv.handleAccessReport)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.setRoute(topic, &route{qos: qos, handler: handler})

	tok := c.paho.Subscribe(topic, qos, c.deliver(handler))
	if err := wait(tok, ErrSubscribeFailed); err != nil {
		c.setRoute(topic, nil)
		return err
	}
	return nil
}

// Unsubscribe drops the route for topic. In-flight messages may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.setRoute(topic, nil)
	return wait(c.paho.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of routed topic filters.
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes)
}

// HasSubscription reports whether the exact filter topic is routed.
func (c *Client) HasSubscription(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.routes[topic]
	return ok
}

// setRoute stores r for topic, or removes it when r is nil.
func (c *Client) setRoute(topic string, r *route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r == nil {
		delete(c.routes, topic)
		return
	}
	c.routes[topic] = *r
}
