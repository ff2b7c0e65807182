package game

import (
	"math/rand"
	"time"
)

type Suit int

type Rank int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

// MaxDealPlayers is the largest table a single 52-card deck can serve.
const MaxDealPlayers = 17

const HandSize = 3

type Card struct {
	Rank Rank
	Suit Suit
}

type Hand [HandSize]Card

func (c Card) String() string {
	r := map[Rank]string{
		Two: "2", Three: "3", Four: "4", Five: "5", Six: "6", Seven: "7", Eight: "8", Nine: "9", Ten: "T", Jack: "J", Queen: "Q", King: "K", Ace: "A",
	}[c.Rank]
	s := map[Suit]string{Spades: "s", Hearts: "h", Diamonds: "d", Clubs: "c"}[c.Suit]
	return r + s
}

func (h Hand) Strings() []string {
	out := make([]string, 0, len(h))
	for _, c := range h {
		out = append(out, c.String())
	}
	return out
}

// Deck is consumed from the back.
type Deck struct {
	cards []Card
}

func NewDeck() *Deck {
	cards := make([]Card, 0, 52)
	for s := Spades; s <= Clubs; s++ {
		for r := Two; r <= Ace; r++ {
			cards = append(cards, Card{Rank: r, Suit: s})
		}
	}
	return &Deck{cards: cards}
}

// NewShuffledDeck returns a full deck in uniformly random order. A nil rnd
// uses a time-seeded source.
func NewShuffledDeck(rnd *rand.Rand) *Deck {
	d := NewDeck()
	d.Shuffle(rnd)
	return d
}

func (d *Deck) Shuffle(rnd *rand.Rand) {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

func (d *Deck) Remaining() int {
	return len(d.cards)
}

func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

func (d *Deck) draw() Card {
	c := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c
}

// Deal hands out one card per player per pass, three passes.
func Deal(d *Deck, playerCount int) ([]Hand, error) {
	if playerCount > MaxDealPlayers || d.Remaining() < HandSize*playerCount {
		return nil, ErrDeckExhausted
	}
	hands := make([]Hand, playerCount)
	for round := 0; round < HandSize; round++ {
		for p := 0; p < playerCount; p++ {
			hands[p][round] = d.draw()
		}
	}
	return hands, nil
}
