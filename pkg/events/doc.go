/*
Package events reports the outcome of plan requests to in-process
subscribers.

A Feed hands every published event to the subscriptions open at that time.
Publishing never blocks: a subscription whose buffer is full misses the
event and counts it in Dropped.

	feed := events.NewFeed(50)
	defer feed.Close()

	sub := feed.Subscribe()
	go func() {
		for ev := range sub.C() {
			fmt.Println(ev.Kind, ev.Plan, ev.Message)
		}
	}()

	ev := events.New(events.PlanComputed, "3 actions, duration 7")
	ev.Plan = planID
	feed.Publish(ev)

Closing the feed closes every subscription, which ends the range loop above.
*/
package events
