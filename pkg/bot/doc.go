// Package bot notifies laboratory managers over Telegram about
// upcoming planned visits and lets managers register their chat by
// sending the bot their name.
//
// The bot never drives the pipeline. It reads planned visits and
// writes only the manager's chat id; everything else stays in the
// operator panels.
package bot
