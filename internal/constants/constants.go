package constants

// Redis keys
const (
	RedisKeyRecentEvents = "ledger:recent"
	RedisKeyTokenIndex   = "tokens:index"
	RedisKeyTokenPrefix  = "tokens:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelEvents    = "ledger:all"
	PubSubChannelPoolFmt   = "ledger:pool:%s"
	PubSubChannelTypeFmt   = "ledger:type:%s"
	PubSubChannelPositions = "ledger:positions"
)

// Limits
const (
	MaxRecentEvents = 100
	MaxPageEvents   = 200
)

// Request defaults
const (
	DefaultAmplification = 100
	DefaultSlippageBps   = 50 // 0.5%
)

// Token mint addresses to symbols
var TokenSymbols = map[string]string{
	"So11111111111111111111111111111111111111112":  "SOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
	"7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs": "ETH",
	"3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh": "BTC",
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": "BONK",
	"7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr": "POPCAT",
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  "JUP",
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": "RAY",
	"9n4nbM75f5Ui33ZbPYXn59EwSgE8CGsHtAeTH5YFeJ9E": "BTC-w",
}

// Symbol returns the known symbol of a mint, or a shortened address.
func Symbol(mint string) string {
	if s, ok := TokenSymbols[mint]; ok {
		return s
	}
	if len(mint) > 8 {
		return mint[:4] + ".." + mint[len(mint)-4:]
	}
	return mint
}
