// Command mangabridge maps anime episodes to the manga chapter where they end.
//
// Usage:
//
//	mangabridge resolve Naruto 5
//	mangabridge resolve "One Piece" 1000 --json
//	mangabridge validate "Jujutsu Kaisen" 48
//	mangabridge seasons Frieren
//	mangabridge serve
//
// Configuration is read from --config, ~/.config/mangabridge/config.toml or
// ./mangabridge.toml; run "mangabridge config init" to write a sample.
package main
