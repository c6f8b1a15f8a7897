package domain

// EventKind tags the payload carried by an Event so the bus can
// dispatch to type-keyed subscribers without reflection.
type EventKind string

const (
	EventTick     EventKind = "TICK"
	EventTrade    EventKind = "TRADE"
	EventOrder    EventKind = "ORDER"
	EventPosition EventKind = "POSITION"
	EventAccount  EventKind = "ACCOUNT"
	EventContract EventKind = "CONTRACT"
	EventLog      EventKind = "LOG"
	EventTimer    EventKind = "TIMER"
	EventBar      EventKind = "BAR"
)

// Event is the tagged variant dispatched by the event bus. Exactly one
// of the payload fields is populated, matching Kind. Subscribers must
// treat the payload as read-only.
type Event struct {
	Kind     EventKind
	Tick     *TickData
	Trade    *TradeData
	Order    *OrderData
	Position *PositionData
	Account  *AccountData
	Contract *ContractData
	Log      *LogData
	Bar      *BarData
}

// TickEvent builds a TICK event, topic-suffixed by symbol at dispatch.
func TickEvent(t TickData) Event { return Event{Kind: EventTick, Tick: &t} }

// TradeEvent builds a TRADE event.
func TradeEvent(t TradeData) Event { return Event{Kind: EventTrade, Trade: &t} }

// OrderEvent builds an ORDER event.
func OrderEvent(o OrderData) Event { return Event{Kind: EventOrder, Order: &o} }

// PositionEvent builds a POSITION event.
func PositionEvent(p PositionData) Event { return Event{Kind: EventPosition, Position: &p} }

// AccountEvent builds an ACCOUNT event.
func AccountEvent(a AccountData) Event { return Event{Kind: EventAccount, Account: &a} }

// ContractEvent builds a CONTRACT event.
func ContractEvent(c ContractData) Event { return Event{Kind: EventContract, Contract: &c} }

// LogEvent builds a LOG event.
func LogEvent(l LogData) Event { return Event{Kind: EventLog, Log: &l} }

// BarEvent builds a BAR event.
func BarEvent(b BarData) Event { return Event{Kind: EventBar, Bar: &b} }

// Topic returns the pub/sub topic name for an event, including the
// per-symbol suffixed variant for ticks (e.g. "eTick.AAPL.SMART").
func (e Event) Topic() string {
	base := topicPrefix[e.Kind]
	if e.Kind == EventTick && e.Tick != nil {
		return base + "." + e.Tick.Symbol
	}
	return base
}

var topicPrefix = map[EventKind]string{
	EventTick:     "eTick",
	EventTrade:    "eTrade",
	EventOrder:    "eOrder",
	EventPosition: "ePosition",
	EventAccount:  "eAccount",
	EventContract: "eContract",
	EventLog:      "eLog",
	EventBar:      "eBar",
	EventTimer:    "eTimer",
}
