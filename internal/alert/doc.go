// Package alert は新着通知を利用者に知らせる。
//
// 1件の通知に対して、通知音、デスクトップ通知、端末内バナーの3経路を独立に試みる。
// 通知音とデスクトップ通知は設定のフラグで個別に無効化でき、フラグは発火のたびに読み直す。
// どの経路が失敗しても他の経路やポーリングは止まらない。
package alert
